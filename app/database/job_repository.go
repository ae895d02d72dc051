package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/jobradar/app/job"
)

// SQLJobRepository handles job persistence, change recording, and the
// enrichment cooldown markers.
type SQLJobRepository struct {
	db *DB
}

var _ JobRepository = (*SQLJobRepository)(nil)

func NewJobRepository(db *DB) *SQLJobRepository {
	return &SQLJobRepository{db: db}
}

const jobColumns = `job_id, title, company, normalized_company, location, posted_at,
	url, company_url, COALESCE(profile_id, ''), salary_min, salary_max, salary_currency,
	remote_eligible, visa_sponsorship, skills, description, applicants, first_seen, last_seen`

// GetJob returns the stored record for jobID, or nil when unknown.
func (r *SQLJobRepository) GetJob(jobID string) (*job.Record, error) {
	row := r.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)

	rec, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return rec, nil
}

// UpsertJob inserts or updates one record in a single transaction. On
// update it merges the incoming record over the stored one (an absent
// incoming field never clobbers a known value), diffs the two via
// job.Diff, and appends one job_changes row per changed field.
func (r *SQLJobRepository) UpsertJob(rec *job.Record) (UpsertResult, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return UpsertResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := upsertJobTx(tx, rec)
	if err != nil {
		return UpsertResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("failed to commit upsert: %w", err)
	}

	return result, nil
}

// UpsertJobs applies a tick's records in fetch order within one
// transaction, so the batch becomes a single flush to the store.
func (r *SQLJobRepository) UpsertJobs(recs []*job.Record) (inserted, updated, changed int, err error) {
	if len(recs) == 0 {
		return 0, 0, 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		result, err := upsertJobTx(tx, rec)
		if err != nil {
			return 0, 0, 0, err
		}
		if result.Inserted {
			inserted++
		} else {
			updated++
		}
		changed += len(result.ChangedFields)
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to commit batch: %w", err)
	}

	return inserted, updated, changed, nil
}

func upsertJobTx(tx *sql.Tx, rec *job.Record) (UpsertResult, error) {
	now := time.Now().UTC()
	if rec.LastSeen.IsZero() {
		rec.LastSeen = now
	}

	row := tx.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, rec.ID)
	existing, err := scanJob(row)
	if err != nil && err != sql.ErrNoRows {
		return UpsertResult{}, fmt.Errorf("failed to load existing job: %w", err)
	}

	if existing == nil {
		if rec.FirstSeen.IsZero() {
			rec.FirstSeen = now
		}
		if err := insertJobTx(tx, rec); err != nil {
			return UpsertResult{}, err
		}
		return UpsertResult{Inserted: true}, nil
	}

	merged := job.Merge(existing, rec)
	changes := job.Diff(existing, merged)

	if err := updateJobTx(tx, merged); err != nil {
		return UpsertResult{}, err
	}

	if len(changes) > 0 {
		if err := recordChangesTx(tx, merged.ID, changes, now); err != nil {
			return UpsertResult{}, err
		}
	}

	changedFields := make([]string, 0, len(changes))
	for _, c := range changes {
		changedFields = append(changedFields, c.Field)
	}

	return UpsertResult{Inserted: false, ChangedFields: changedFields}, nil
}

func insertJobTx(tx *sql.Tx, rec *job.Record) error {
	_, err := tx.Exec(`
		INSERT INTO jobs (
			job_id, title, company, normalized_company, location, posted_at,
			url, company_url, profile_id, salary_min, salary_max, salary_currency,
			remote_eligible, visa_sponsorship, skills, description, applicants,
			first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, jobArgs(rec)...)

	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func updateJobTx(tx *sql.Tx, rec *job.Record) error {
	args := jobArgs(rec)
	// Move job_id from the front to the WHERE position.
	args = append(args[1:], args[0])

	_, err := tx.Exec(`
		UPDATE jobs SET
			title = ?, company = ?, normalized_company = ?, location = ?, posted_at = ?,
			url = ?, company_url = ?, profile_id = ?, salary_min = ?, salary_max = ?,
			salary_currency = ?, remote_eligible = ?, visa_sponsorship = ?, skills = ?,
			description = ?, applicants = ?, first_seen = ?, last_seen = ?
		WHERE job_id = ?
	`, args...)

	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func recordChangesTx(tx *sql.Tx, jobID string, changes []job.FieldChange, at time.Time) error {
	stmt, err := tx.Prepare(`
		INSERT INTO job_changes (job_id, field, old_value, new_value, changed_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare change insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range changes {
		if _, err := stmt.Exec(jobID, c.Field, c.Old, c.New, at.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to record change: %w", err)
		}
	}
	return nil
}

// QueryJobs runs a composable filtered query. Keyword filtering goes
// through the FTS5 index; everything else is plain indexed SQL.
func (r *SQLJobRepository) QueryJobs(filter JobFilter) ([]job.Record, error) {
	var where []string
	var args []interface{}

	if filter.Company != "" {
		where = append(where, "normalized_company LIKE ?")
		args = append(args, "%"+job.NormalizeCompany(filter.Company)+"%")
	}
	if filter.Location != "" {
		where = append(where, "LOWER(location) LIKE LOWER(?)")
		args = append(args, "%"+filter.Location+"%")
	}
	if filter.Keywords != "" {
		where = append(where, "job_id IN (SELECT job_id FROM jobs_fts WHERE jobs_fts MATCH ?)")
		args = append(args, filter.Keywords)
	}
	if filter.PostedWithin > 0 {
		cutoff := time.Now().UTC().Add(-filter.PostedWithin)
		where = append(where, "posted_at >= ?")
		args = append(args, cutoff.Format(time.RFC3339))
	}
	if filter.RemoteOnly {
		where = append(where, "remote_eligible = 1")
	}
	if filter.VisaOnly {
		where = append(where, "visa_sponsorship = 1")
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	switch filter.SortBy {
	case "first_seen":
		query += " ORDER BY first_seen DESC"
	case "last_seen":
		query += " ORDER BY last_seen DESC"
	default:
		query += " ORDER BY COALESCE(posted_at, first_seen) DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

func (r *SQLJobRepository) CountJobs() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM jobs").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}
	return count, nil
}

// ListNeedingEnrichment returns records with one or more derived fields
// still unknown and no active cooldown, oldest first seen first.
func (r *SQLJobRepository) ListNeedingEnrichment(limit int) ([]job.Record, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	rows, err := r.db.Query(`
		SELECT `+jobColumns+`
		FROM jobs
		WHERE (salary_min IS NULL OR remote_eligible IS NULL
		       OR visa_sponsorship IS NULL OR skills = '' OR description = '')
		  AND (enrich_retry_after IS NULL OR enrich_retry_after <= ?)
		ORDER BY first_seen
		LIMIT ?
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs needing enrichment: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// MarkEnrichmentFailure bumps the failure counter; once maxFailures
// consecutive failures accumulate, the record is exempted from enrichment
// until the cooldown window passes.
func (r *SQLJobRepository) MarkEnrichmentFailure(jobID string, maxFailures int, cooldown time.Duration) error {
	retryAfter := time.Now().UTC().Add(cooldown).Format(time.RFC3339Nano)

	_, err := r.db.Exec(`
		UPDATE jobs
		SET enrich_failures = enrich_failures + 1,
		    enrich_retry_after = CASE
		        WHEN enrich_failures + 1 >= ? THEN ?
		        ELSE enrich_retry_after
		    END
		WHERE job_id = ?
	`, maxFailures, retryAfter, jobID)

	if err != nil {
		return fmt.Errorf("failed to mark enrichment failure: %w", err)
	}
	return nil
}

// ClearEnrichmentMarkers resets the cooldown state after a successful
// enrichment.
func (r *SQLJobRepository) ClearEnrichmentMarkers(jobID string) error {
	_, err := r.db.Exec(`
		UPDATE jobs
		SET enrich_failures = 0, enrich_retry_after = NULL
		WHERE job_id = ?
	`, jobID)

	if err != nil {
		return fmt.Errorf("failed to clear enrichment markers: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*job.Record, error) {
	var rec job.Record
	var postedAt, firstSeen, lastSeen sql.NullString
	var salaryMin, salaryMax sql.NullFloat64
	var remote, visa sql.NullBool
	var skills string

	err := row.Scan(
		&rec.ID, &rec.Title, &rec.Company, &rec.NormalizedCompany, &rec.Location, &postedAt,
		&rec.URL, &rec.CompanyURL, &rec.ProfileID, &salaryMin, &salaryMax, &rec.SalaryCurrency,
		&remote, &visa, &skills, &rec.Description, &rec.Applicants, &firstSeen, &lastSeen,
	)
	if err != nil {
		return nil, err
	}

	if postedAt.Valid && postedAt.String != "" {
		if t, err := time.Parse(time.RFC3339, postedAt.String); err == nil {
			rec.PostedAt = &t
		}
	}
	if salaryMin.Valid {
		rec.SalaryMin = &salaryMin.Float64
	}
	if salaryMax.Valid {
		rec.SalaryMax = &salaryMax.Float64
	}
	if remote.Valid {
		rec.RemoteEligible = &remote.Bool
	}
	if visa.Valid {
		rec.VisaSponsorship = &visa.Bool
	}
	if skills != "" {
		rec.Skills = strings.Split(skills, ", ")
	}
	if firstSeen.Valid {
		rec.FirstSeen, _ = time.Parse(time.RFC3339Nano, firstSeen.String)
	}
	if lastSeen.Valid {
		rec.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen.String)
	}

	return &rec, nil
}

func collectJobs(rows *sql.Rows) ([]job.Record, error) {
	var records []job.Record
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}

	return records, nil
}

func jobArgs(rec *job.Record) []interface{} {
	var postedAt interface{}
	if rec.PostedAt != nil {
		postedAt = rec.PostedAt.UTC().Format(time.RFC3339)
	}

	var profileID interface{}
	if rec.ProfileID != "" {
		profileID = rec.ProfileID
	}

	var salaryMin, salaryMax interface{}
	if rec.SalaryMin != nil {
		salaryMin = *rec.SalaryMin
	}
	if rec.SalaryMax != nil {
		salaryMax = *rec.SalaryMax
	}

	var remote, visa interface{}
	if rec.RemoteEligible != nil {
		remote = *rec.RemoteEligible
	}
	if rec.VisaSponsorship != nil {
		visa = *rec.VisaSponsorship
	}

	return []interface{}{
		rec.ID, rec.Title, rec.Company, rec.NormalizedCompany, rec.Location, postedAt,
		rec.URL, rec.CompanyURL, profileID, salaryMin, salaryMax, rec.SalaryCurrency,
		remote, visa, job.SkillsValue(rec.Skills), rec.Description, rec.Applicants,
		rec.FirstSeen.UTC().Format(time.RFC3339Nano), rec.LastSeen.UTC().Format(time.RFC3339Nano),
	}
}
