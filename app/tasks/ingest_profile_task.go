package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/jobradar/app/database"
	"github.com/lysyi3m/jobradar/app/job"
	"github.com/lysyi3m/jobradar/app/scraper"
)

// IngestProfileTask runs one ingestion tick for one profile: fetch the
// search page, fetch details for each candidate with bounded concurrency,
// and flush the surviving records to the store in fetch order.
type IngestProfileTask struct {
	Task
	ProfileID     string
	profileRepo   database.ProfileRepository
	jobRepo       database.JobRepository
	fetcher       Fetcher
	maxCandidates int
}

func NewIngestProfileTask(profileID, profileName string, profileRepo database.ProfileRepository,
	jobRepo database.JobRepository, fetcher Fetcher, maxCandidates int) *IngestProfileTask {
	return &IngestProfileTask{
		Task:          NewTask(TaskTypeIngestProfile, profileName),
		ProfileID:     profileID,
		profileRepo:   profileRepo,
		jobRepo:       jobRepo,
		fetcher:       fetcher,
		maxCandidates: maxCandidates,
	}
}

func (t *IngestProfileTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Re-read the profile so criteria edits between enqueue and execution
	// take effect, and a profile disabled in the meantime is skipped.
	profile, err := t.profileRepo.GetProfile(t.ProfileID)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if profile == nil || !profile.Enabled || profile.Deleted {
		slog.Debug("Profile inactive, skipping", "profile", t.Subject)
		return nil
	}

	searchURL := scraper.SearchURL(profile.Keywords, profile.Location, profile.Distance)

	summaries, err := t.fetcher.FetchSearch(ctx, searchURL)
	if err != nil {
		return fmt.Errorf("failed to fetch search results: %w", err)
	}

	if len(summaries) > t.maxCandidates {
		summaries = summaries[:t.maxCandidates]
	}

	reqs := make([]scraper.Request, 0, len(summaries))
	byID := make(map[string]job.Summary, len(summaries))
	for _, summary := range summaries {
		byID[summary.ID] = summary
		reqs = append(reqs, scraper.Request{ID: summary.ID, URL: scraper.DetailURL(summary.ID)})
	}

	results := t.fetcher.FetchBatch(ctx, reqs)

	var records []*job.Record
	notFoundCount := 0
	transientCount := 0
	malformedCount := 0

	for _, result := range results {
		if result.Err != nil {
			var fetchErr *scraper.FetchError
			if errors.As(result.Err, &fetchErr) {
				switch fetchErr.Kind {
				case scraper.NotFound:
					notFoundCount++
				case scraper.Malformed:
					malformedCount++
				default:
					transientCount++
				}
			} else {
				transientCount++
			}
			slog.Debug("Detail fetch failed", "profile", t.Subject, "id", result.ID, "error", result.Err)
			continue
		}

		record := result.Record
		record.ProfileID = profile.ID
		fillFromSummary(record, byID[record.ID])

		records = append(records, record)
	}

	inserted, updated, changed, err := t.jobRepo.UpsertJobs(records)
	if err != nil {
		return fmt.Errorf("failed to store records: %w", err)
	}

	if err := t.profileRepo.UpdateLastRun(profile.ID, t.StartedAt.UTC()); err != nil {
		return fmt.Errorf("failed to update last run: %w", err)
	}

	slog.Info("Task completed",
		"type", "IngestProfile",
		"profile", t.Subject,
		"duration", t.GetDuration(),
		"candidates", len(summaries),
		"stored", len(records),
		"new", inserted,
		"updated", updated,
		"changes", changed,
		"not_found", notFoundCount,
		"transient", transientCount,
		"malformed", malformedCount)

	return nil
}

// fillFromSummary backfills record fields the detail page lacks from the
// search card the record was discovered on.
func fillFromSummary(record *job.Record, summary job.Summary) {
	if record.URL == "" {
		record.URL = summary.URL
	}
	if record.CompanyURL == "" {
		record.CompanyURL = summary.CompanyURL
	}
	if record.Location == "" {
		record.Location = summary.Location
	}
	if record.PostedAt == nil {
		record.PostedAt = summary.PostedAt
	}
	if record.Title == "" {
		record.Title = summary.Title
	}
}
