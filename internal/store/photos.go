package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
)

// SavePhoto inserts or updates a photo.
func (s *Store) SavePhoto(ctx context.Context, p *entity.Photo) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid photo: %w", err)
	}

	query := `
	INSERT INTO photos (
		id, remote_id, project_id, folder_id,
		local_path, remote_url, thumbnail_url, media_type,
		captured_at, latitude, longitude, note,
		sync_status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		remote_id = excluded.remote_id,
		folder_id = excluded.folder_id,
		local_path = excluded.local_path,
		remote_url = excluded.remote_url,
		thumbnail_url = excluded.thumbnail_url,
		media_type = excluded.media_type,
		captured_at = excluded.captured_at,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		note = excluded.note,
		sync_status = excluded.sync_status,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		p.ID,
		nullIfEmpty(p.RemoteID),
		p.ProjectID,
		nullIfEmpty(p.FolderID),
		p.LocalPath,
		p.RemoteURL,
		p.ThumbnailURL,
		p.MediaType,
		p.CapturedAt.Format(time.RFC3339),
		p.Latitude,
		p.Longitude,
		p.Note,
		string(p.SyncStatus),
		p.CreatedAt.Format(time.RFC3339),
		p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save photo %s: %w", p.ID, err)
	}

	return nil
}

// GetPhoto retrieves a single photo by local ID.
// Returns ErrNotFound if the photo does not exist.
func (s *Store) GetPhoto(ctx context.Context, id string) (*entity.Photo, error) {
	row := s.conn.QueryRowContext(ctx, photoSelect+` WHERE id = ?`, id)

	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	return p, err
}

// ListPhotos returns all photos belonging to a project, oldest first.
func (s *Store) ListPhotos(ctx context.Context, projectID string) ([]*entity.Photo, error) {
	rows, err := s.conn.QueryContext(ctx,
		photoSelect+` WHERE project_id = ? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	var photos []*entity.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		photos = append(photos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating photos: %w", err)
	}
	return photos, nil
}

// DeletePhoto removes a photo and, via cascade, its comments.
// Returns nil if the photo doesn't exist (idempotent).
func (s *Store) DeletePhoto(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete photo %s: %w", id, err)
	}
	return nil
}

const photoSelect = `
	SELECT id, remote_id, project_id, folder_id,
	       local_path, remote_url, thumbnail_url, media_type,
	       captured_at, latitude, longitude, note,
	       sync_status, created_at, updated_at
	FROM photos`

func scanPhoto(row scanner) (*entity.Photo, error) {
	var p entity.Photo
	var remoteID, folderID sql.NullString
	var capturedAt, createdAt, updatedAt string

	err := row.Scan(
		&p.ID,
		&remoteID,
		&p.ProjectID,
		&folderID,
		&p.LocalPath,
		&p.RemoteURL,
		&p.ThumbnailURL,
		&p.MediaType,
		&capturedAt,
		&p.Latitude,
		&p.Longitude,
		&p.Note,
		(*string)(&p.SyncStatus),
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan photo: %w", err)
	}

	p.RemoteID = remoteID.String
	p.FolderID = folderID.String
	p.CapturedAt = parseTime(capturedAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}
