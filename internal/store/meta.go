package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const metaLastSyncAt = "last_sync_at"

// SetLastSyncAt persists the timestamp of the last successful drain.
// The value survives restarts and seeds the engine's status at startup.
func (s *Store) SetLastSyncAt(ctx context.Context, t time.Time) error {
	return s.setMeta(ctx, metaLastSyncAt, t.UTC().Format(time.RFC3339))
}

// LastSyncAt returns the persisted last-sync timestamp, or the zero time
// if no sync has ever completed.
func (s *Store) LastSyncAt(ctx context.Context) (time.Time, error) {
	v, err := s.getMeta(ctx, metaLastSyncAt)
	if errors.Is(err, ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt last sync timestamp %q: %w", v, err)
	}
	return t, nil
}

func (s *Store) setMeta(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO sync_meta (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.conn.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

func (s *Store) getMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}
