package database

import (
	"time"
)

// Profile is an ingestion configuration: query criteria plus cadence.
// Profiles are owned by the scheduler's registry; the store persists them
// but never mutates them on its own.
type Profile struct {
	ID              string
	Name            string
	Keywords        string
	Location        string
	Distance        int
	RefreshInterval int // seconds
	Enabled         bool
	Deleted         bool
	LastRunAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ChangeEntry is one immutable audit row: a single field's old/new value
// transition on a job record. Append-only.
type ChangeEntry struct {
	ID        int64
	JobID     string
	JobTitle  string
	Company   string
	Field     string
	OldValue  string
	NewValue  string
	ChangedAt time.Time
}

// UpsertResult reports what one upsert did.
type UpsertResult struct {
	Inserted      bool
	ChangedFields []string
}
