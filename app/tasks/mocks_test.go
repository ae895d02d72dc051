package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/jobradar/app/database"
	"github.com/lysyi3m/jobradar/app/job"
	"github.com/lysyi3m/jobradar/app/scraper"
)

// mockFetcher serves canned search and detail results.
type mockFetcher struct {
	summaries     []job.Summary
	searchErr     error
	detailRecords map[string]*job.Record
	detailErrs    map[string]error
	company       *job.Company
	companyErr    error

	searchCalls  int
	batchedIDs   [][]string
	companyCalls []string
}

var _ Fetcher = (*mockFetcher)(nil)

func (m *mockFetcher) FetchSearch(ctx context.Context, searchURL string) ([]job.Summary, error) {
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.summaries, nil
}

func (m *mockFetcher) FetchBatch(ctx context.Context, reqs []scraper.Request) []scraper.Result {
	ids := make([]string, 0, len(reqs))
	results := make([]scraper.Result, 0, len(reqs))
	for _, req := range reqs {
		ids = append(ids, req.ID)
		if err, ok := m.detailErrs[req.ID]; ok {
			results = append(results, scraper.Result{ID: req.ID, Err: err})
			continue
		}
		rec := m.detailRecords[req.ID]
		if rec == nil {
			rec = &job.Record{ID: req.ID, Title: "Engineer", Company: "Acme", NormalizedCompany: "acme"}
		}
		copied := *rec
		results = append(results, scraper.Result{ID: req.ID, Record: &copied})
	}
	m.batchedIDs = append(m.batchedIDs, ids)
	return results
}

func (m *mockFetcher) FetchCompany(ctx context.Context, companyURL, companyName string) (*job.Company, error) {
	m.companyCalls = append(m.companyCalls, companyName)
	if m.companyErr != nil {
		return nil, m.companyErr
	}
	if m.company != nil {
		copied := *m.company
		return &copied, nil
	}
	return &job.Company{Name: companyName, NormalizedName: job.NormalizeCompany(companyName)}, nil
}

// mockProfileRepo implements database.ProfileRepository.
type mockProfileRepo struct {
	profiles map[string]*database.Profile
	lastRuns map[string]time.Time
}

var _ database.ProfileRepository = (*mockProfileRepo)(nil)

func newMockProfileRepo(profiles ...*database.Profile) *mockProfileRepo {
	m := &mockProfileRepo{
		profiles: make(map[string]*database.Profile),
		lastRuns: make(map[string]time.Time),
	}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

func (m *mockProfileRepo) CreateProfile(p *database.Profile) error {
	m.profiles[p.ID] = p
	return nil
}

func (m *mockProfileRepo) UpdateProfile(p *database.Profile) error {
	m.profiles[p.ID] = p
	return nil
}

func (m *mockProfileRepo) GetProfile(id string) (*database.Profile, error) {
	p, ok := m.profiles[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *mockProfileRepo) GetProfileByName(name string) (*database.Profile, error) {
	for _, p := range m.profiles {
		if p.Name == name {
			copied := *p
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockProfileRepo) ListProfiles(includeDeleted bool) ([]database.Profile, error) {
	var out []database.Profile
	for _, p := range m.profiles {
		if !includeDeleted && p.Deleted {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *mockProfileRepo) ListActiveProfiles() ([]database.Profile, error) {
	var out []database.Profile
	for _, p := range m.profiles {
		if p.Enabled && !p.Deleted {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProfileRepo) SoftDeleteProfile(id string) error {
	if p, ok := m.profiles[id]; ok {
		p.Deleted = true
		p.Enabled = false
	}
	return nil
}

func (m *mockProfileRepo) HardDeleteProfile(id string) error {
	delete(m.profiles, id)
	return nil
}

func (m *mockProfileRepo) UpdateLastRun(id string, at time.Time) error {
	m.lastRuns[id] = at
	if p, ok := m.profiles[id]; ok {
		copied := at
		p.LastRunAt = &copied
	}
	return nil
}

func (m *mockProfileRepo) CountProfiles() (int, error) {
	return len(m.profiles), nil
}

// mockJobRepo implements database.JobRepository.
type mockJobRepo struct {
	upserted       [][]*job.Record
	singleUpserts  []*job.Record
	needing        []job.Record
	failuresMarked []string
	markersCleared []string
}

var _ database.JobRepository = (*mockJobRepo)(nil)

func (m *mockJobRepo) GetJob(jobID string) (*job.Record, error) { return nil, nil }

func (m *mockJobRepo) UpsertJob(rec *job.Record) (database.UpsertResult, error) {
	m.singleUpserts = append(m.singleUpserts, rec)
	return database.UpsertResult{Inserted: true}, nil
}

func (m *mockJobRepo) UpsertJobs(recs []*job.Record) (int, int, int, error) {
	m.upserted = append(m.upserted, recs)
	return len(recs), 0, 0, nil
}

func (m *mockJobRepo) QueryJobs(filter database.JobFilter) ([]job.Record, error) { return nil, nil }
func (m *mockJobRepo) CountJobs() (int, error)                                   { return 0, nil }

func (m *mockJobRepo) ListNeedingEnrichment(limit int) ([]job.Record, error) {
	if limit < len(m.needing) {
		return m.needing[:limit], nil
	}
	return m.needing, nil
}

func (m *mockJobRepo) MarkEnrichmentFailure(jobID string, maxFailures int, cooldown time.Duration) error {
	m.failuresMarked = append(m.failuresMarked, jobID)
	return nil
}

func (m *mockJobRepo) ClearEnrichmentMarkers(jobID string) error {
	m.markersCleared = append(m.markersCleared, jobID)
	return nil
}

// mockCompanyRepo implements database.CompanyRepository.
type mockCompanyRepo struct {
	refs           []database.CompanyRef
	upserted       []*job.Company
	failuresMarked []string
}

var _ database.CompanyRepository = (*mockCompanyRepo)(nil)

func (m *mockCompanyRepo) UpsertCompany(c *job.Company) error {
	m.upserted = append(m.upserted, c)
	return nil
}

func (m *mockCompanyRepo) GetCompany(normalizedName string) (*job.Company, error) { return nil, nil }

func (m *mockCompanyRepo) ListNeedingRefresh(limit int) ([]database.CompanyRef, error) {
	return m.refs, nil
}

func (m *mockCompanyRepo) MarkFailure(normalizedName string, maxFailures int, cooldown time.Duration) error {
	m.failuresMarked = append(m.failuresMarked, normalizedName)
	return nil
}

func (m *mockCompanyRepo) CountCompanies() (int, error) {
	return len(m.upserted), nil
}
