package job

import (
	"strings"
	"time"
)

// Record is one ingested job posting. The external ID is globally unique
// within the store; re-ingesting the same ID is an update, never a
// duplicate insert. Derived fields are pointers: nil means "not yet known",
// which is distinct from a known zero value.
type Record struct {
	ID                string
	Title             string
	Company           string
	NormalizedCompany string
	Location          string
	PostedAt          *time.Time
	URL               string
	CompanyURL        string
	ProfileID         string

	// Derived fields, computed by the extractor or filled in later by
	// the enrichment worker.
	SalaryMin       *float64
	SalaryMax       *float64
	SalaryCurrency  string
	RemoteEligible  *bool
	VisaSponsorship *bool
	Skills          []string
	Description     string
	Applicants      string

	FirstSeen time.Time
	LastSeen  time.Time
}

// Summary is the partial record extracted from one search result card.
// Only the detail fetch produces a full Record.
type Summary struct {
	ID         string
	Title      string
	Company    string
	CompanyURL string
	Location   string
	PostedAt   *time.Time
	URL        string
}

// Company holds enrichment metadata for an organization, keyed by its
// normalized name.
type Company struct {
	Name           string
	NormalizedName string
	Size           string
	Industry       string
	Website        string
	Headquarters   string
	Description    string
	FetchedAt      time.Time
	RefreshAfter   time.Time
}

// NeedsEnrichment reports whether any derived field is still unknown.
func (r *Record) NeedsEnrichment() bool {
	return r.SalaryMin == nil || r.RemoteEligible == nil ||
		r.VisaSponsorship == nil || len(r.Skills) == 0 || r.Description == ""
}

// SkillsValue renders the skills list in its stored form.
func SkillsValue(skills []string) string {
	return strings.Join(skills, ", ")
}
