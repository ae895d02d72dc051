package database

import (
	"time"

	"github.com/lysyi3m/jobradar/app/job"
)

// JobFilter is the composable query surface over stored jobs.
type JobFilter struct {
	Company      string        // normalized substring match
	Location     string        // case-insensitive substring match
	Keywords     string        // full-text match over title/description/skills
	PostedWithin time.Duration // zero means any age
	RemoteOnly   bool
	VisaOnly     bool
	SortBy       string // "posted_at" (default), "first_seen", "last_seen"
	Limit        int
	Offset       int
}

type JobRepository interface {
	GetJob(jobID string) (*job.Record, error)
	UpsertJob(rec *job.Record) (UpsertResult, error)
	UpsertJobs(recs []*job.Record) (inserted, updated, changed int, err error)
	QueryJobs(filter JobFilter) ([]job.Record, error)
	CountJobs() (int, error)

	ListNeedingEnrichment(limit int) ([]job.Record, error)
	MarkEnrichmentFailure(jobID string, maxFailures int, cooldown time.Duration) error
	ClearEnrichmentMarkers(jobID string) error
}

type ProfileRepository interface {
	CreateProfile(p *Profile) error
	UpdateProfile(p *Profile) error
	GetProfile(id string) (*Profile, error)
	GetProfileByName(name string) (*Profile, error)
	ListProfiles(includeDeleted bool) ([]Profile, error)
	ListActiveProfiles() ([]Profile, error)
	SoftDeleteProfile(id string) error
	HardDeleteProfile(id string) error
	UpdateLastRun(id string, at time.Time) error
	CountProfiles() (int, error)
}

type ChangeRepository interface {
	GetChangesSince(since time.Time, limit int) ([]ChangeEntry, error)
	GetChangesForJob(jobID string) ([]ChangeEntry, error)
}

type CompanyRepository interface {
	UpsertCompany(c *job.Company) error
	GetCompany(normalizedName string) (*job.Company, error)
	ListNeedingRefresh(limit int) ([]CompanyRef, error)
	MarkFailure(normalizedName string, maxFailures int, cooldown time.Duration) error
	CountCompanies() (int, error)
}

// CompanyRef identifies a company whose enrichment data is missing or
// stale, with the page URL to fetch it from.
type CompanyRef struct {
	Name           string
	NormalizedName string
	URL            string
}
