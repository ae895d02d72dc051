package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/jobradar/app/database"
)

// RefreshCompaniesTask backfills organization metadata for companies that
// stored records reference but whose enrichment row is missing or stale.
type RefreshCompaniesTask struct {
	Task
	companyRepo database.CompanyRepository
	fetcher     Fetcher
	batchSize   int
	maxFailures int
	cooldown    time.Duration
}

func NewRefreshCompaniesTask(companyRepo database.CompanyRepository, fetcher Fetcher,
	batchSize, maxFailures int, cooldown time.Duration) *RefreshCompaniesTask {
	return &RefreshCompaniesTask{
		Task:        NewTask(TaskTypeRefreshCompanies, "companies"),
		companyRepo: companyRepo,
		fetcher:     fetcher,
		batchSize:   batchSize,
		maxFailures: maxFailures,
		cooldown:    cooldown,
	}
}

func (t *RefreshCompaniesTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	refs, err := t.companyRepo.ListNeedingRefresh(t.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list companies needing refresh: %w", err)
	}

	if len(refs) == 0 {
		slog.Debug("No companies need refresh")
		return nil
	}

	refreshedCount := 0
	failedCount := 0

	for _, ref := range refs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		company, err := t.fetcher.FetchCompany(ctx, ref.URL, ref.Name)
		if err != nil {
			slog.Debug("Company fetch failed", "company", ref.Name, "error", err)
			if markErr := t.companyRepo.MarkFailure(ref.NormalizedName, t.maxFailures, t.cooldown); markErr != nil {
				slog.Warn("Failed to mark company failure", "company", ref.Name, "error", markErr)
			}
			failedCount++
			continue
		}

		company.NormalizedName = ref.NormalizedName
		if err := t.companyRepo.UpsertCompany(company); err != nil {
			slog.Warn("Failed to store company", "company", ref.Name, "error", err)
			failedCount++
			continue
		}
		refreshedCount++
	}

	slog.Info("Task completed",
		"type", "RefreshCompanies",
		"duration", t.GetDuration(),
		"candidates", len(refs),
		"refreshed", refreshedCount,
		"failed", failedCount)

	return nil
}
