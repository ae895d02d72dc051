package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SQLChangeRepository reads the append-only job_changes audit trail.
// Writes happen inside the job upsert transaction, never here.
type SQLChangeRepository struct {
	db *DB
}

var _ ChangeRepository = (*SQLChangeRepository)(nil)

func NewChangeRepository(db *DB) *SQLChangeRepository {
	return &SQLChangeRepository{db: db}
}

// GetChangesSince returns change entries recorded at or after the given
// time, newest first, joined with the current job title and company for
// display.
func (r *SQLChangeRepository) GetChangesSince(since time.Time, limit int) ([]ChangeEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(`
		SELECT c.id, c.job_id, j.title, j.company, c.field, c.old_value, c.new_value, c.changed_at
		FROM job_changes c
		JOIN jobs j ON j.job_id = c.job_id
		WHERE c.changed_at >= ?
		ORDER BY c.changed_at DESC, c.id DESC
		LIMIT ?
	`, since.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer rows.Close()

	return collectChanges(rows)
}

func (r *SQLChangeRepository) GetChangesForJob(jobID string) ([]ChangeEntry, error) {
	rows, err := r.db.Query(`
		SELECT c.id, c.job_id, j.title, j.company, c.field, c.old_value, c.new_value, c.changed_at
		FROM job_changes c
		JOIN jobs j ON j.job_id = c.job_id
		WHERE c.job_id = ?
		ORDER BY c.changed_at DESC, c.id DESC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job changes: %w", err)
	}
	defer rows.Close()

	return collectChanges(rows)
}

func collectChanges(rows *sql.Rows) ([]ChangeEntry, error) {
	var entries []ChangeEntry
	for rows.Next() {
		var e ChangeEntry
		var changedAt string

		err := rows.Scan(&e.ID, &e.JobID, &e.JobTitle, &e.Company,
			&e.Field, &e.OldValue, &e.NewValue, &changedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change row: %w", err)
		}

		e.ChangedAt, _ = time.Parse(time.RFC3339Nano, changedAt)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change rows: %w", err)
	}

	return entries, nil
}
