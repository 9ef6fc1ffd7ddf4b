package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
)

// SaveShareLink inserts or updates a share link.
func (s *Store) SaveShareLink(ctx context.Context, l *entity.ShareLink) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid share link: %w", err)
	}

	query := `
	INSERT INTO share_links (
		id, remote_id, project_id, url, expires_at,
		sync_status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		remote_id = excluded.remote_id,
		url = excluded.url,
		expires_at = excluded.expires_at,
		sync_status = excluded.sync_status,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		l.ID,
		nullIfEmpty(l.RemoteID),
		l.ProjectID,
		l.URL,
		timeToNullString(l.ExpiresAt),
		string(l.SyncStatus),
		l.CreatedAt.Format(time.RFC3339),
		l.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save share link %s: %w", l.ID, err)
	}

	return nil
}

// GetShareLink retrieves a single share link by local ID.
// Returns ErrNotFound if the link does not exist.
func (s *Store) GetShareLink(ctx context.Context, id string) (*entity.ShareLink, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, remote_id, project_id, url, expires_at, sync_status, created_at, updated_at
	FROM share_links WHERE id = ?`, id)

	l, err := scanShareLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("share link %s: %w", id, ErrNotFound)
	}
	return l, err
}

// ListShareLinks returns all share links for a project, oldest first.
func (s *Store) ListShareLinks(ctx context.Context, projectID string) ([]*entity.ShareLink, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, remote_id, project_id, url, expires_at, sync_status, created_at, updated_at
	FROM share_links WHERE project_id = ? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	defer rows.Close()

	var links []*entity.ShareLink
	for rows.Next() {
		l, err := scanShareLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating share links: %w", err)
	}
	return links, nil
}

// DeleteShareLink removes a share link. Returns nil if it doesn't exist.
func (s *Store) DeleteShareLink(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM share_links WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete share link %s: %w", id, err)
	}
	return nil
}

func scanShareLink(row scanner) (*entity.ShareLink, error) {
	var l entity.ShareLink
	var remoteID, expiresAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&l.ID,
		&remoteID,
		&l.ProjectID,
		&l.URL,
		&expiresAt,
		(*string)(&l.SyncStatus),
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan share link: %w", err)
	}

	l.RemoteID = remoteID.String
	l.ExpiresAt = nullStringToTime(expiresAt)
	l.CreatedAt = parseTime(createdAt)
	l.UpdatedAt = parseTime(updatedAt)
	return &l, nil
}
