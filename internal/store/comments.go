package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
)

// SaveComment inserts or updates a comment.
func (s *Store) SaveComment(ctx context.Context, c *entity.Comment) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid comment: %w", err)
	}

	query := `
	INSERT INTO comments (
		id, remote_id, photo_id, text, author,
		sync_status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		remote_id = excluded.remote_id,
		text = excluded.text,
		author = excluded.author,
		sync_status = excluded.sync_status,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		c.ID,
		nullIfEmpty(c.RemoteID),
		c.PhotoID,
		c.Text,
		c.Author,
		string(c.SyncStatus),
		c.CreatedAt.Format(time.RFC3339),
		c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save comment %s: %w", c.ID, err)
	}

	return nil
}

// GetComment retrieves a single comment by local ID.
// Returns ErrNotFound if the comment does not exist.
func (s *Store) GetComment(ctx context.Context, id string) (*entity.Comment, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, remote_id, photo_id, text, author, sync_status, created_at, updated_at
	FROM comments WHERE id = ?`, id)

	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("comment %s: %w", id, ErrNotFound)
	}
	return c, err
}

// ListComments returns all comments on a photo, oldest first.
func (s *Store) ListComments(ctx context.Context, photoID string) ([]*entity.Comment, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, remote_id, photo_id, text, author, sync_status, created_at, updated_at
	FROM comments WHERE photo_id = ? ORDER BY created_at ASC`, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var comments []*entity.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comments: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment. Returns nil if it doesn't exist (idempotent).
func (s *Store) DeleteComment(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete comment %s: %w", id, err)
	}
	return nil
}

func scanComment(row scanner) (*entity.Comment, error) {
	var c entity.Comment
	var remoteID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&c.ID,
		&remoteID,
		&c.PhotoID,
		&c.Text,
		&c.Author,
		(*string)(&c.SyncStatus),
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}

	c.RemoteID = remoteID.String
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
