package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lysyi3m/jobradar/app/cfg"
	"github.com/lysyi3m/jobradar/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Scheduler runs the ingestion and enrichment workloads. A poll loop
// re-reads the profile store every interval so profiles created, edited,
// or disabled at runtime take effect without a restart; due profiles are
// enqueued as ingest tasks for the worker pool. Enrichment runs on its
// own cron cadence against a narrower pipeline.
type Scheduler struct {
	profileRepo    database.ProfileRepository
	jobRepo        database.JobRepository
	companyRepo    database.CompanyRepository
	ingestFetcher  Fetcher
	enrichFetcher  Fetcher
	pollInterval   time.Duration
	enrichInterval time.Duration
	maxCandidates  int
	enrichBatch    int
	maxFailures    int
	cooldown       time.Duration
	workerCount    int
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	cron           *cron.Cron
	taskQueue      chan TaskInterface
}

func NewScheduler(profileRepo database.ProfileRepository, jobRepo database.JobRepository,
	companyRepo database.CompanyRepository, ingestFetcher, enrichFetcher Fetcher) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		profileRepo:    profileRepo,
		jobRepo:        jobRepo,
		companyRepo:    companyRepo,
		ingestFetcher:  ingestFetcher,
		enrichFetcher:  enrichFetcher,
		pollInterval:   time.Duration(cfg.PollInterval) * time.Second,
		enrichInterval: time.Duration(cfg.EnrichInterval) * time.Second,
		maxCandidates:  cfg.MaxCandidates,
		enrichBatch:    cfg.EnrichBatchSize,
		maxFailures:    cfg.MaxEnrichFailures,
		cooldown:       time.Duration(cfg.EnrichCooldown) * time.Second,
		workerCount:    cfg.FetchConcurrency,
		ctx:            ctx,
		cancel:         cancel,
		cron:           cron.New(),
		taskQueue:      make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		s.enqueueDueProfiles()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueProfiles()
			}
		}
	}()

	s.cron.AddFunc(fmt.Sprintf("@every %ds", int(s.enrichInterval.Seconds())), func() {
		enrichTask := NewEnrichJobsTask(s.jobRepo, s.enrichFetcher, s.enrichBatch, s.maxFailures, s.cooldown)
		if err := s.EnqueueTask(enrichTask); err != nil {
			slog.Warn("Failed to enqueue EnrichJobsTask", "error", err)
		}

		refreshTask := NewRefreshCompaniesTask(s.companyRepo, s.enrichFetcher, s.enrichBatch, s.maxFailures, s.cooldown)
		if err := s.EnqueueTask(refreshTask); err != nil {
			slog.Warn("Failed to enqueue RefreshCompaniesTask", "error", err)
		}
	})
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.cancel()
	s.wg.Wait()
	close(s.taskQueue)
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueueDueProfiles re-reads the profile store and enqueues an ingest
// task for every active profile whose refresh interval has elapsed since
// its last run.
func (s *Scheduler) enqueueDueProfiles() {
	profiles, err := s.profileRepo.ListActiveProfiles()
	if err != nil {
		slog.Error("Failed to list active profiles", "error", err)
		return
	}

	if len(profiles) == 0 {
		slog.Debug("No active profiles found")
		return
	}

	now := time.Now().UTC()
	for _, profile := range profiles {
		if profile.LastRunAt != nil {
			due := profile.LastRunAt.Add(time.Duration(profile.RefreshInterval) * time.Second)
			if due.After(now) {
				slog.Debug("Profile not due yet", "profile", profile.Name, "due_at", due)
				continue
			}
		}

		task := NewIngestProfileTask(profile.ID, profile.Name, s.profileRepo, s.jobRepo, s.ingestFetcher, s.maxCandidates)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue IngestProfileTask", "profile", profile.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > 30*time.Second {
				retryDelay = 30 * time.Second
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				time.Sleep(retryDelay)
				select {
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				default:
					if retryErr := s.EnqueueTask(task); retryErr != nil {
						slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
