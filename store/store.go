// Package store persists notes, task completions, and the LLM cost ledger
// in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a referenced note does not exist or has been
// soft-deleted.
var ErrNotFound = errors.New("store: note not found")

// DB wraps a SQLite database connection.
type DB struct {
	conn *sql.DB
	Path string
}

// Open opens a SQLite database with WAL mode and foreign keys enabled, and
// applies the schema migration. Use ":memory:" for tests.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn, Path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

// migrate applies the idempotent schema.
func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		id         TEXT PRIMARY KEY,
		content    TEXT NOT NULL,
		category   TEXT,
		metadata   TEXT NOT NULL DEFAULT '{}',
		source     TEXT NOT NULL DEFAULT 'auto',
		created_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_notes_category ON notes(category);
	CREATE INDEX IF NOT EXISTS idx_notes_created_at ON notes(created_at);

	CREATE TABLE IF NOT EXISTS llm_costs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		endpoint      TEXT NOT NULL,
		model         TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		cost_usd      REAL NOT NULL,
		date          TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_llm_costs_date ON llm_costs(date);

	CREATE TABLE IF NOT EXISTS task_completions (
		note_id TEXT PRIMARY KEY REFERENCES notes(id)
	);`

	if _, err := d.conn.Exec(schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Ping probes database connectivity for health checks.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}
