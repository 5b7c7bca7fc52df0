// Package store provides the durable metadata database for foldsync.
//
// The store is an embedded SQLite database (one file per install) holding
// the configured sync folders, the per-file metadata used as the diff
// baseline, and the conflict log. It runs with WAL enabled so status reads
// stay cheap while a sync pass is writing.
//
// The store is single-writer: only one engine instance should own a given
// database file at a time. Concurrent upserts to different paths are safe.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store wraps the SQLite connection with foldsync-specific queries.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the metadata database at the specified path.
//
// The parent directory is created if missing. The database is opened in
// embedded mode with WAL for concurrent reads. The caller MUST call Close()
// when done.
//
// An error here is fatal to startup; per-row operations below return errors
// the caller may retry.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn: conn,
		path: path,
	}

	// WAL keeps readers unblocked during sync-pass writes
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := s.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return s, nil
}

// Path returns the database file path this store was opened against.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
//
// This is idempotent - safe to call multiple times, including against a
// database file a previous engine instance already populated.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_folders (
		id TEXT PRIMARY KEY,
		local_path TEXT NOT NULL,
		remote_path TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'idle',
		enabled INTEGER NOT NULL DEFAULT 1,
		size INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS file_metadata (
		path TEXT PRIMARY KEY,
		folder_id TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		modified_at TEXT NOT NULL,
		checksum TEXT NOT NULL DEFAULT '',
		is_directory INTEGER NOT NULL DEFAULT 0,
		sync_status TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (folder_id) REFERENCES sync_folders(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS conflicts (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL,
		folder_id TEXT NOT NULL,
		local_modified TEXT NOT NULL,
		remote_modified TEXT NOT NULL,
		resolution TEXT NOT NULL DEFAULT '',
		resolved_at TEXT,
		detected_at TEXT NOT NULL,
		FOREIGN KEY (folder_id) REFERENCES sync_folders(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_file_metadata_folder ON file_metadata(folder_id);
	CREATE INDEX IF NOT EXISTS idx_conflicts_folder ON conflicts(folder_id);
	CREATE INDEX IF NOT EXISTS idx_conflicts_pending
	    ON conflicts(resolution) WHERE resolution = '';
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	return nil
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
