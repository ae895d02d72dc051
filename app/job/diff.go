package job

import (
	"strconv"
	"time"
)

// FieldChange describes one field's old/new value transition.
type FieldChange struct {
	Field string
	Old   string
	New   string
}

// trackedFields is the canonical set of fields covered by change detection,
// in the order changes are reported.
var trackedFields = []string{
	"title",
	"company",
	"location",
	"posted_at",
	"salary_min",
	"salary_max",
	"salary_currency",
	"remote_eligible",
	"visa_sponsorship",
	"skills",
	"description",
	"applicants",
	"url",
}

// Diff compares a stored record with an incoming one and returns a change
// per tracked field whose incoming value is present and differs from the
// stored value. Missing-to-present counts as a change; present-to-missing
// does not, since an absent incoming value means "not yet known", not
// "removed".
func Diff(existing, incoming *Record) []FieldChange {
	oldValues := fieldValues(existing)
	newValues := fieldValues(incoming)

	var changes []FieldChange
	for _, field := range trackedFields {
		newValue := newValues[field]
		if newValue == "" {
			continue
		}
		if oldValue := oldValues[field]; oldValue != newValue {
			changes = append(changes, FieldChange{Field: field, Old: oldValue, New: newValue})
		}
	}

	return changes
}

// Merge overlays incoming onto existing: a present incoming field wins, an
// absent one keeps the stored value. FirstSeen is always preserved from the
// stored record.
func Merge(existing, incoming *Record) *Record {
	merged := *existing
	merged.LastSeen = incoming.LastSeen

	if incoming.Title != "" {
		merged.Title = incoming.Title
	}
	if incoming.Company != "" {
		merged.Company = incoming.Company
		merged.NormalizedCompany = incoming.NormalizedCompany
	}
	if incoming.Location != "" {
		merged.Location = incoming.Location
	}
	if incoming.PostedAt != nil {
		merged.PostedAt = incoming.PostedAt
	}
	if incoming.URL != "" {
		merged.URL = incoming.URL
	}
	if incoming.CompanyURL != "" {
		merged.CompanyURL = incoming.CompanyURL
	}
	if incoming.ProfileID != "" {
		merged.ProfileID = incoming.ProfileID
	}
	if incoming.SalaryMin != nil {
		merged.SalaryMin = incoming.SalaryMin
	}
	if incoming.SalaryMax != nil {
		merged.SalaryMax = incoming.SalaryMax
	}
	if incoming.SalaryCurrency != "" {
		merged.SalaryCurrency = incoming.SalaryCurrency
	}
	if incoming.RemoteEligible != nil {
		merged.RemoteEligible = incoming.RemoteEligible
	}
	if incoming.VisaSponsorship != nil {
		merged.VisaSponsorship = incoming.VisaSponsorship
	}
	if len(incoming.Skills) > 0 {
		merged.Skills = incoming.Skills
	}
	if incoming.Description != "" {
		merged.Description = incoming.Description
	}
	if incoming.Applicants != "" {
		merged.Applicants = incoming.Applicants
	}

	return &merged
}

func fieldValues(r *Record) map[string]string {
	values := map[string]string{
		"title":           r.Title,
		"company":         r.Company,
		"location":        r.Location,
		"salary_currency": r.SalaryCurrency,
		"skills":          SkillsValue(r.Skills),
		"description":     r.Description,
		"applicants":      r.Applicants,
		"url":             r.URL,
	}

	if r.PostedAt != nil {
		values["posted_at"] = r.PostedAt.UTC().Format(time.RFC3339)
	}
	if r.SalaryMin != nil {
		values["salary_min"] = strconv.FormatFloat(*r.SalaryMin, 'f', -1, 64)
	}
	if r.SalaryMax != nil {
		values["salary_max"] = strconv.FormatFloat(*r.SalaryMax, 'f', -1, 64)
	}
	if r.RemoteEligible != nil {
		values["remote_eligible"] = strconv.FormatBool(*r.RemoteEligible)
	}
	if r.VisaSponsorship != nil {
		values["visa_sponsorship"] = strconv.FormatBool(*r.VisaSponsorship)
	}

	return values
}
