package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLProfileRepository persists ingestion profiles. Deletion is soft by
// default so job records keep their provenance; hard delete is reserved
// for operator cleanup.
type SQLProfileRepository struct {
	db *DB
}

var _ ProfileRepository = (*SQLProfileRepository)(nil)

func NewProfileRepository(db *DB) *SQLProfileRepository {
	return &SQLProfileRepository{db: db}
}

const profileColumns = `id, name, keywords, location, distance, refresh_interval,
	enabled, deleted, last_run_at, created_at, updated_at`

func (r *SQLProfileRepository) CreateProfile(p *Profile) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.Exec(`
		INSERT INTO profiles (id, name, keywords, location, distance, refresh_interval,
			enabled, deleted, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Keywords, p.Location, p.Distance, p.RefreshInterval,
		p.Enabled, p.Deleted, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))

	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

func (r *SQLProfileRepository) UpdateProfile(p *Profile) error {
	p.UpdatedAt = time.Now().UTC()

	result, err := r.db.Exec(`
		UPDATE profiles
		SET name = ?, keywords = ?, location = ?, distance = ?, refresh_interval = ?,
		    enabled = ?, deleted = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Keywords, p.Location, p.Distance, p.RefreshInterval,
		p.Enabled, p.Deleted, p.UpdatedAt.Format(time.RFC3339Nano), p.ID)

	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("profile not found: %s", p.ID)
	}
	return nil
}

func (r *SQLProfileRepository) GetProfile(id string) (*Profile, error) {
	row := r.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	return scanProfile(row)
}

func (r *SQLProfileRepository) GetProfileByName(name string) (*Profile, error) {
	row := r.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name)
	return scanProfile(row)
}

func (r *SQLProfileRepository) ListProfiles(includeDeleted bool) ([]Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	if !includeDeleted {
		query += ` WHERE deleted = 0`
	}
	query += ` ORDER BY name`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	return collectProfiles(rows)
}

// ListActiveProfiles returns profiles the scheduler should be running:
// enabled and not deleted.
func (r *SQLProfileRepository) ListActiveProfiles() ([]Profile, error) {
	rows, err := r.db.Query(`
		SELECT ` + profileColumns + `
		FROM profiles
		WHERE enabled = 1 AND deleted = 0
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active profiles: %w", err)
	}
	defer rows.Close()

	return collectProfiles(rows)
}

// SoftDeleteProfile disables and marks the profile deleted; its job
// records keep pointing at it.
func (r *SQLProfileRepository) SoftDeleteProfile(id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	result, err := r.db.Exec(`
		UPDATE profiles SET deleted = 1, enabled = 0, updated_at = ? WHERE id = ?
	`, now, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	return nil
}

// HardDeleteProfile removes the row; jobs referencing it fall back to a
// NULL profile via the foreign key.
func (r *SQLProfileRepository) HardDeleteProfile(id string) error {
	result, err := r.db.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to hard delete profile: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	return nil
}

func (r *SQLProfileRepository) UpdateLastRun(id string, at time.Time) error {
	_, err := r.db.Exec(`
		UPDATE profiles SET last_run_at = ? WHERE id = ?
	`, at.UTC().Format(time.RFC3339Nano), id)

	if err != nil {
		return fmt.Errorf("failed to update last run: %w", err)
	}
	return nil
}

func (r *SQLProfileRepository) CountProfiles() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM profiles WHERE deleted = 0").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count profiles: %w", err)
	}
	return count, nil
}

func scanProfile(row rowScanner) (*Profile, error) {
	var p Profile
	var lastRun sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Name, &p.Keywords, &p.Location, &p.Distance,
		&p.RefreshInterval, &p.Enabled, &p.Deleted, &lastRun, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan profile: %w", err)
	}

	if lastRun.Valid && lastRun.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, lastRun.String); err == nil {
			p.LastRunAt = &t
		}
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)

	return &p, nil
}

func collectProfiles(rows *sql.Rows) ([]Profile, error) {
	var profiles []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profile rows: %w", err)
	}

	return profiles, nil
}
