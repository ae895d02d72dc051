package tasks

import (
	"context"

	"github.com/lysyi3m/jobradar/app/job"
	"github.com/lysyi3m/jobradar/app/scraper"
)

// TaskSchedulerInterface defines the interface for background task
// processing. Used by the main application to manage the ingestion and
// enrichment workers.
// Example usage:
//
//	scheduler := NewScheduler(profileRepo, jobRepo, companyRepo, ingestPipeline, enrichPipeline)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// Fetcher is the slice of the fetch pipeline the tasks need. Satisfied by
// *scraper.Pipeline.
type Fetcher interface {
	FetchSearch(ctx context.Context, searchURL string) ([]job.Summary, error)
	FetchBatch(ctx context.Context, reqs []scraper.Request) []scraper.Result
	FetchCompany(ctx context.Context, companyURL, companyName string) (*job.Company, error)
}
