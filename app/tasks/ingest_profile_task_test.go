package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/lysyi3m/jobradar/app/database"
	"github.com/lysyi3m/jobradar/app/job"
	"github.com/lysyi3m/jobradar/app/scraper"
)

func activeProfile() *database.Profile {
	return &database.Profile{
		ID:              "p1",
		Name:            "backend",
		Keywords:        "golang developer",
		Location:        "Berlin",
		Distance:        25,
		RefreshInterval: 3600,
		Enabled:         true,
	}
}

func TestIngestProfileTaskStoresRecordsInFetchOrder(t *testing.T) {
	profile := activeProfile()
	profileRepo := newMockProfileRepo(profile)
	jobRepo := &mockJobRepo{}
	fetcher := &mockFetcher{
		summaries: []job.Summary{
			{ID: "J1", Title: "Engineer", URL: "https://example.com/jobs/J1"},
			{ID: "J2", Title: "SRE", URL: "https://example.com/jobs/J2"},
			{ID: "J3", Title: "Data Engineer", URL: "https://example.com/jobs/J3"},
		},
		detailErrs: map[string]error{
			"J2": &scraper.FetchError{Kind: scraper.NotFound, URL: "https://example.com/jobs/J2"},
		},
	}

	task := NewIngestProfileTask("p1", "backend", profileRepo, jobRepo, fetcher, 50)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(jobRepo.upserted) != 1 {
		t.Fatalf("Expected one batch upsert, got %d", len(jobRepo.upserted))
	}
	batch := jobRepo.upserted[0]
	if len(batch) != 2 {
		t.Fatalf("Expected 2 records (failed item skipped), got %d", len(batch))
	}
	if batch[0].ID != "J1" || batch[1].ID != "J3" {
		t.Errorf("Expected fetch order preserved, got %s then %s", batch[0].ID, batch[1].ID)
	}
	for _, rec := range batch {
		if rec.ProfileID != "p1" {
			t.Errorf("Expected profile attribution on %s, got '%s'", rec.ID, rec.ProfileID)
		}
	}

	if _, ok := profileRepo.lastRuns["p1"]; !ok {
		t.Error("Expected last run to be recorded")
	}
}

func TestIngestProfileTaskCapsCandidates(t *testing.T) {
	profile := activeProfile()
	profileRepo := newMockProfileRepo(profile)
	jobRepo := &mockJobRepo{}

	var summaries []job.Summary
	for i := 0; i < 20; i++ {
		summaries = append(summaries, job.Summary{ID: string(rune('A' + i))})
	}
	fetcher := &mockFetcher{summaries: summaries}

	task := NewIngestProfileTask("p1", "backend", profileRepo, jobRepo, fetcher, 5)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(fetcher.batchedIDs) != 1 || len(fetcher.batchedIDs[0]) != 5 {
		t.Errorf("Expected detail fetches capped at 5, got %v", fetcher.batchedIDs)
	}
}

func TestIngestProfileTaskSkipsInactiveProfile(t *testing.T) {
	profile := activeProfile()
	profile.Enabled = false
	profileRepo := newMockProfileRepo(profile)
	jobRepo := &mockJobRepo{}
	fetcher := &mockFetcher{}

	task := NewIngestProfileTask("p1", "backend", profileRepo, jobRepo, fetcher, 50)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if fetcher.searchCalls != 0 {
		t.Error("Disabled profile must not trigger a search fetch")
	}
	if len(jobRepo.upserted) != 0 {
		t.Error("Disabled profile must not store records")
	}
}

func TestIngestProfileTaskBackfillsFromSummary(t *testing.T) {
	profile := activeProfile()
	profileRepo := newMockProfileRepo(profile)
	jobRepo := &mockJobRepo{}

	posted := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	fetcher := &mockFetcher{
		summaries: []job.Summary{
			{
				ID:         "J1",
				Title:      "Engineer",
				Location:   "Berlin, Germany",
				URL:        "https://example.com/jobs/J1",
				CompanyURL: "https://example.com/company/acme",
				PostedAt:   &posted,
			},
		},
		detailRecords: map[string]*job.Record{
			// Detail page resolved the title but lacks URL and location.
			"J1": {ID: "J1", Title: "Senior Engineer", Company: "Acme", NormalizedCompany: "acme"},
		},
	}

	task := NewIngestProfileTask("p1", "backend", profileRepo, jobRepo, fetcher, 50)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	rec := jobRepo.upserted[0][0]
	if rec.Title != "Senior Engineer" {
		t.Errorf("Detail title must win, got '%s'", rec.Title)
	}
	if rec.URL != "https://example.com/jobs/J1" {
		t.Errorf("Expected URL backfilled from summary, got '%s'", rec.URL)
	}
	if rec.Location != "Berlin, Germany" {
		t.Errorf("Expected location backfilled from summary, got '%s'", rec.Location)
	}
	if rec.CompanyURL != "https://example.com/company/acme" {
		t.Errorf("Expected company URL backfilled, got '%s'", rec.CompanyURL)
	}
	if rec.PostedAt == nil || !rec.PostedAt.Equal(posted) {
		t.Errorf("Expected posted date backfilled, got %v", rec.PostedAt)
	}
}

func TestIngestProfileTaskSearchFailurePropagates(t *testing.T) {
	profile := activeProfile()
	profileRepo := newMockProfileRepo(profile)
	jobRepo := &mockJobRepo{}
	fetcher := &mockFetcher{
		searchErr: &scraper.FetchError{Kind: scraper.Transient, URL: "https://example.com/search"},
	}

	task := NewIngestProfileTask("p1", "backend", profileRepo, jobRepo, fetcher, 50)
	task.Start()

	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected search failure to propagate for scheduler retry")
	}
	if _, ok := profileRepo.lastRuns["p1"]; ok {
		t.Error("Failed run must not update last run time")
	}
}
