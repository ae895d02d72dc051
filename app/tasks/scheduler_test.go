package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/lysyi3m/jobradar/app/database"
	"github.com/robfig/cron/v3"
)

func testScheduler(profileRepo database.ProfileRepository) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		profileRepo:   profileRepo,
		jobRepo:       &mockJobRepo{},
		companyRepo:   &mockCompanyRepo{},
		ingestFetcher: &mockFetcher{},
		enrichFetcher: &mockFetcher{},
		pollInterval:  10 * time.Millisecond,
		maxCandidates: 50,
		workerCount:   1,
		ctx:           ctx,
		cancel:        cancel,
		cron:          cron.New(),
		taskQueue:     make(chan TaskInterface, 10),
	}
}

func drainQueue(s *Scheduler) []TaskInterface {
	var tasks []TaskInterface
	for {
		select {
		case task := <-s.taskQueue:
			tasks = append(tasks, task)
		default:
			return tasks
		}
	}
}

func TestEnqueueDueProfilesNeverRunBefore(t *testing.T) {
	profile := activeProfile()
	s := testScheduler(newMockProfileRepo(profile))
	defer s.cancel()

	s.enqueueDueProfiles()

	tasks := drainQueue(s)
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 task for a never-run profile, got %d", len(tasks))
	}
	if tasks[0].GetType() != TaskTypeIngestProfile {
		t.Errorf("Expected ingest task, got %s", tasks[0].GetType())
	}
}

func TestEnqueueDueProfilesSkipsRecentRun(t *testing.T) {
	profile := activeProfile()
	ranAt := time.Now().UTC().Add(-time.Minute)
	profile.LastRunAt = &ranAt

	s := testScheduler(newMockProfileRepo(profile))
	defer s.cancel()

	s.enqueueDueProfiles()

	if tasks := drainQueue(s); len(tasks) != 0 {
		t.Errorf("Profile within its refresh interval must not be enqueued, got %d tasks", len(tasks))
	}
}

func TestEnqueueDueProfilesPicksUpElapsedInterval(t *testing.T) {
	profile := activeProfile()
	ranAt := time.Now().UTC().Add(-2 * time.Hour)
	profile.LastRunAt = &ranAt

	s := testScheduler(newMockProfileRepo(profile))
	defer s.cancel()

	s.enqueueDueProfiles()

	if tasks := drainQueue(s); len(tasks) != 1 {
		t.Errorf("Profile past its refresh interval must be enqueued, got %d tasks", len(tasks))
	}
}

func TestEnqueueDueProfilesSkipsDisabledAndDeleted(t *testing.T) {
	disabled := activeProfile()
	disabled.ID = "p-disabled"
	disabled.Name = "disabled"
	disabled.Enabled = false

	deleted := activeProfile()
	deleted.ID = "p-deleted"
	deleted.Name = "deleted"
	deleted.Deleted = true

	s := testScheduler(newMockProfileRepo(disabled, deleted))
	defer s.cancel()

	s.enqueueDueProfiles()

	if tasks := drainQueue(s); len(tasks) != 0 {
		t.Errorf("Inactive profiles must not be enqueued, got %d tasks", len(tasks))
	}
}

func TestReenabledProfileIsPickedUpOnNextPoll(t *testing.T) {
	profile := activeProfile()
	profile.Enabled = false
	repo := newMockProfileRepo(profile)

	s := testScheduler(repo)
	defer s.cancel()

	s.enqueueDueProfiles()
	if tasks := drainQueue(s); len(tasks) != 0 {
		t.Fatalf("Disabled profile enqueued: %d tasks", len(tasks))
	}

	// Re-enable between polls; the next poll must pick it up.
	profile.Enabled = true
	s.enqueueDueProfiles()
	if tasks := drainQueue(s); len(tasks) != 1 {
		t.Errorf("Re-enabled profile must be enqueued on the next poll, got %d tasks", len(tasks))
	}
}

func TestEnqueueTaskFailsWhenQueueFull(t *testing.T) {
	s := testScheduler(newMockProfileRepo())
	defer s.cancel()

	for i := 0; i < cap(s.taskQueue); i++ {
		if err := s.EnqueueTask(NewIngestProfileTask("p", "x", newMockProfileRepo(), &mockJobRepo{}, &mockFetcher{}, 1)); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}

	if err := s.EnqueueTask(NewIngestProfileTask("p", "x", newMockProfileRepo(), &mockJobRepo{}, &mockFetcher{}, 1)); err == nil {
		t.Error("Expected enqueue to fail on a full queue")
	}
}

func TestTaskRetryBookkeeping(t *testing.T) {
	task := NewTask(TaskTypeIngestProfile, "backend")

	if !task.CanRetry() {
		t.Error("Fresh task should be retryable")
	}
	for i := 0; i < DefaultMaxRetries; i++ {
		task.IncrementRetryCount()
	}
	if task.CanRetry() {
		t.Error("Task at max retries must not be retryable")
	}
}
