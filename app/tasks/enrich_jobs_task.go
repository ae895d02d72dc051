package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/jobradar/app/database"
	"github.com/lysyi3m/jobradar/app/scraper"
)

// EnrichJobsTask re-fetches the detail pages of stored records whose
// derived fields are still unknown and merges whatever the new fetch
// yields. Records that keep failing are put on a cooldown so the backlog
// does not spin on permanently broken pages.
type EnrichJobsTask struct {
	Task
	jobRepo     database.JobRepository
	fetcher     Fetcher
	batchSize   int
	maxFailures int
	cooldown    time.Duration
}

func NewEnrichJobsTask(jobRepo database.JobRepository, fetcher Fetcher,
	batchSize, maxFailures int, cooldown time.Duration) *EnrichJobsTask {
	return &EnrichJobsTask{
		Task:        NewTask(TaskTypeEnrichJobs, "enrichment"),
		jobRepo:     jobRepo,
		fetcher:     fetcher,
		batchSize:   batchSize,
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
}

func (t *EnrichJobsTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	candidates, err := t.jobRepo.ListNeedingEnrichment(t.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list enrichment candidates: %w", err)
	}

	if len(candidates) == 0 {
		slog.Debug("No records need enrichment")
		return nil
	}

	reqs := make([]scraper.Request, 0, len(candidates))
	for _, rec := range candidates {
		reqs = append(reqs, scraper.Request{ID: rec.ID, URL: scraper.DetailURL(rec.ID)})
	}

	results := t.fetcher.FetchBatch(ctx, reqs)

	enrichedCount := 0
	failedCount := 0
	skippedCount := 0

	for _, result := range results {
		if result.Err != nil {
			var fetchErr *scraper.FetchError
			if errors.As(result.Err, &fetchErr) && fetchErr.Kind == scraper.Transient {
				// Transient failures resolve themselves on a later pass;
				// only persistent ones count toward the cooldown.
				skippedCount++
				continue
			}

			if err := t.jobRepo.MarkEnrichmentFailure(result.ID, t.maxFailures, t.cooldown); err != nil {
				slog.Warn("Failed to mark enrichment failure", "id", result.ID, "error", err)
			}
			failedCount++
			continue
		}

		if _, err := t.jobRepo.UpsertJob(result.Record); err != nil {
			slog.Warn("Failed to store enriched record", "id", result.ID, "error", err)
			failedCount++
			continue
		}

		if err := t.jobRepo.ClearEnrichmentMarkers(result.ID); err != nil {
			slog.Warn("Failed to clear enrichment markers", "id", result.ID, "error", err)
		}
		enrichedCount++
	}

	slog.Info("Task completed",
		"type", "EnrichJobs",
		"duration", t.GetDuration(),
		"candidates", len(candidates),
		"enriched", enrichedCount,
		"failed", failedCount,
		"skipped", skippedCount)

	return nil
}
