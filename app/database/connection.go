package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const connPragmas = "_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(30000)&_pragma=foreign_keys(ON)"

// DB wraps the SQLite handle. WAL mode lets queries proceed while the
// single ingestion writer is active; SQLite itself serializes writes.
type DB struct {
	*sql.DB
}

// NewConnection opens (creating if necessary) the store file at path.
// Pass ":memory:" for an in-memory store, used by tests.
func NewConnection(path string) (*DB, error) {
	var dsn string
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared&" + connPragmas
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = "file:" + path + "?" + connPragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer, and a shared
	// in-memory database disappears when its last connection closes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}
