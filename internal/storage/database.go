// Package storage handles data persistence: the SQLite cache mirror and call
// audit, plus the on-disk thumbnail store.
package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver
)

// schema is applied on every start; statements are idempotent.
// image_cache mirrors the in-memory image cache so a restart can warm-start
// without spending quota. images holds the JSON-encoded []ImageResult.
const schema = `
CREATE TABLE IF NOT EXISTS image_cache (
    cache_key  TEXT PRIMARY KEY,
    query      TEXT NOT NULL,
    page       INTEGER NOT NULL DEFAULT 1,
    images     TEXT NOT NULL,
    created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS provider_calls (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id   TEXT NOT NULL DEFAULT '',
    provider     TEXT NOT NULL,
    query        TEXT NOT NULL DEFAULT '',
    outcome      TEXT NOT NULL,
    status_code  INTEGER NOT NULL DEFAULT 0,
    result_count INTEGER NOT NULL DEFAULT 0,
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_image_cache_created_at ON image_cache(created_at);
CREATE INDEX IF NOT EXISTS idx_provider_calls_provider ON provider_calls(provider, created_at);
`

// NewDatabase opens the SQLite file at dbPath, creating its directory if
// needed, and applies the schema.
func NewDatabase(dbPath string) (*sqlx.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// WAL lets the admin endpoints read while the resolver writes.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", dbPath)

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return db, nil
}
