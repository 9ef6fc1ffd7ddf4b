// Package store provides the embedded SQLite persistence layer for
// fieldscope: the entity tables, the durable outbox queue, and the sync
// metadata table.
//
// The database runs in embedded mode with WAL for concurrent reads. All
// mutations flow through the sync engine's single thread of control; the
// UI-facing surfaces only read counts and statuses.
//
// Layout:
//   - Entity tables: projects, folders, photos, comments, share_links
//   - Outbox table: pending remote operations, ordered by priority then age
//   - sync_meta: scalar key/value state (last successful sync timestamp)
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the SQLite connection with fieldscope-specific functionality.
type Store struct {
	conn   *sql.DB
	path   string
	logger *log.Logger
}

// Open creates a new database connection at the specified path.
//
// The database is opened in embedded mode with WAL for concurrent reads.
// If the database doesn't exist, it is created; call InitSchema to create
// the tables. The caller MUST call Close() when done.
//
// Example:
//
//	st, err := store.Open(filepath.Join(dataDir, "fieldscope.db"))
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
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

	st := &Store{
		conn:   conn,
		path:   path,
		logger: log.New(os.Stderr, "[store] ", log.LstdFlags),
	}

	// WAL mode for concurrent reads
	if _, err := st.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := st.conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return st, nil
}

// RawDB returns the underlying sql.DB connection.
// This is useful for integrating with other libraries that expect *sql.DB.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SetLogger replaces the store's logger.
func (s *Store) SetLogger(logger *log.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Printf("Warning: failed to checkpoint WAL: %v", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		remote_id TEXT,
		name TEXT NOT NULL,
		description TEXT,
		address TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS folders (
		id TEXT PRIMARY KEY,
		remote_id TEXT,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS photos (
		id TEXT PRIMARY KEY,
		remote_id TEXT,
		project_id TEXT NOT NULL,
		folder_id TEXT,
		local_path TEXT,
		remote_url TEXT,
		thumbnail_url TEXT,
		media_type TEXT NOT NULL,
		captured_at TEXT NOT NULL,
		latitude REAL NOT NULL DEFAULT 0,
		longitude REAL NOT NULL DEFAULT 0,
		note TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		remote_id TEXT,
		photo_id TEXT NOT NULL,
		text TEXT NOT NULL,
		author TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (photo_id) REFERENCES photos(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS share_links (
		id TEXT PRIMARY KEY,
		remote_id TEXT,
		project_id TEXT NOT NULL,
		url TEXT,
		expires_at TEXT,
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		operation TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 1,
		retry_count INTEGER NOT NULL DEFAULT 0,
		last_attempt_at TEXT,
		error_message TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Indexes for common queries
	CREATE INDEX IF NOT EXISTS idx_projects_remote ON projects(remote_id);
	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(sync_status);
	CREATE INDEX IF NOT EXISTS idx_folders_project ON folders(project_id);
	CREATE INDEX IF NOT EXISTS idx_folders_remote ON folders(remote_id);
	CREATE INDEX IF NOT EXISTS idx_photos_project ON photos(project_id);
	CREATE INDEX IF NOT EXISTS idx_photos_remote ON photos(remote_id);
	CREATE INDEX IF NOT EXISTS idx_photos_status ON photos(sync_status);
	CREATE INDEX IF NOT EXISTS idx_comments_photo ON comments(photo_id);
	CREATE INDEX IF NOT EXISTS idx_sharelinks_project ON share_links(project_id);

	-- Composite index for the drain query
	CREATE INDEX IF NOT EXISTS idx_outbox_drain
	    ON outbox(retry_count, priority, created_at);
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
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// parseTime parses an RFC3339 timestamp, returning the zero time on failure.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
