package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lysyi3m/jobradar/app/job"
)

// SQLCompanyRepository persists per-organization enrichment metadata,
// keyed by the normalized company name so spelling variants collapse
// onto one row.
type SQLCompanyRepository struct {
	db *DB
}

var _ CompanyRepository = (*SQLCompanyRepository)(nil)

func NewCompanyRepository(db *DB) *SQLCompanyRepository {
	return &SQLCompanyRepository{db: db}
}

func (r *SQLCompanyRepository) UpsertCompany(c *job.Company) error {
	now := time.Now().UTC()
	c.FetchedAt = now
	if c.RefreshAfter.IsZero() {
		c.RefreshAfter = now.Add(30 * 24 * time.Hour)
	}

	_, err := r.db.Exec(`
		INSERT INTO companies (normalized_name, name, size, industry, website,
			headquarters, description, fetched_at, refresh_after, failures, retry_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL)
		ON CONFLICT(normalized_name) DO UPDATE SET
			name = excluded.name,
			size = excluded.size,
			industry = excluded.industry,
			website = excluded.website,
			headquarters = excluded.headquarters,
			description = excluded.description,
			fetched_at = excluded.fetched_at,
			refresh_after = excluded.refresh_after,
			failures = 0,
			retry_after = NULL
	`, c.NormalizedName, c.Name, c.Size, c.Industry, c.Website,
		c.Headquarters, c.Description,
		c.FetchedAt.Format(time.RFC3339Nano), c.RefreshAfter.Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("failed to upsert company: %w", err)
	}
	return nil
}

func (r *SQLCompanyRepository) GetCompany(normalizedName string) (*job.Company, error) {
	row := r.db.QueryRow(`
		SELECT normalized_name, name, size, industry, website, headquarters,
		       description, fetched_at, refresh_after
		FROM companies
		WHERE normalized_name = ?
	`, normalizedName)

	var c job.Company
	var fetchedAt, refreshAfter string

	err := row.Scan(&c.NormalizedName, &c.Name, &c.Size, &c.Industry,
		&c.Website, &c.Headquarters, &c.Description, &fetchedAt, &refreshAfter)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	c.FetchedAt, _ = time.Parse(time.RFC3339Nano, fetchedAt)
	c.RefreshAfter, _ = time.Parse(time.RFC3339Nano, refreshAfter)

	return &c, nil
}

// ListNeedingRefresh finds companies referenced by stored jobs whose
// enrichment row is missing or past its refresh window, skipping ones in
// failure cooldown. The company page URL comes from the freshest job
// that links to it.
func (r *SQLCompanyRepository) ListNeedingRefresh(limit int) ([]CompanyRef, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	rows, err := r.db.Query(`
		SELECT j.company, j.normalized_company, j.company_url
		FROM jobs j
		LEFT JOIN companies c ON c.normalized_name = j.normalized_company
		WHERE j.company_url != ''
		  AND (c.normalized_name IS NULL OR c.refresh_after <= ?)
		  AND (c.retry_after IS NULL OR c.retry_after <= ?)
		GROUP BY j.normalized_company
		HAVING j.last_seen = MAX(j.last_seen)
		LIMIT ?
	`, now, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies needing refresh: %w", err)
	}
	defer rows.Close()

	var refs []CompanyRef
	for rows.Next() {
		var ref CompanyRef
		if err := rows.Scan(&ref.Name, &ref.NormalizedName, &ref.URL); err != nil {
			return nil, fmt.Errorf("failed to scan company ref: %w", err)
		}
		refs = append(refs, ref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating company refs: %w", err)
	}

	return refs, nil
}

// MarkFailure bumps the failure counter on the company row, creating a
// placeholder row if none exists yet, and starts a cooldown once the
// threshold is reached.
func (r *SQLCompanyRepository) MarkFailure(normalizedName string, maxFailures int, cooldown time.Duration) error {
	now := time.Now().UTC()
	retryAfter := now.Add(cooldown).Format(time.RFC3339Nano)

	_, err := r.db.Exec(`
		INSERT INTO companies (normalized_name, name, fetched_at, refresh_after, failures, retry_after)
		VALUES (?, ?, ?, ?, 1, CASE WHEN 1 >= ? THEN ? ELSE NULL END)
		ON CONFLICT(normalized_name) DO UPDATE SET
			failures = failures + 1,
			retry_after = CASE WHEN failures + 1 >= ? THEN ? ELSE retry_after END
	`, normalizedName, normalizedName,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
		maxFailures, retryAfter, maxFailures, retryAfter)

	if err != nil {
		return fmt.Errorf("failed to mark company failure: %w", err)
	}
	return nil
}

func (r *SQLCompanyRepository) CountCompanies() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM companies").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count companies: %w", err)
	}
	return count, nil
}
