package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
)

// SaveFolder inserts or updates a folder.
func (s *Store) SaveFolder(ctx context.Context, f *entity.Folder) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid folder: %w", err)
	}

	query := `
	INSERT INTO folders (
		id, remote_id, project_id, name,
		sync_status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		remote_id = excluded.remote_id,
		name = excluded.name,
		sync_status = excluded.sync_status,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		f.ID,
		nullIfEmpty(f.RemoteID),
		f.ProjectID,
		f.Name,
		string(f.SyncStatus),
		f.CreatedAt.Format(time.RFC3339),
		f.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save folder %s: %w", f.ID, err)
	}

	return nil
}

// GetFolder retrieves a single folder by local ID.
// Returns ErrNotFound if the folder does not exist.
func (s *Store) GetFolder(ctx context.Context, id string) (*entity.Folder, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, remote_id, project_id, name, sync_status, created_at, updated_at
	FROM folders WHERE id = ?`, id)

	f, err := scanFolder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("folder %s: %w", id, ErrNotFound)
	}
	return f, err
}

// ListFolders returns all folders belonging to a project, oldest first.
func (s *Store) ListFolders(ctx context.Context, projectID string) ([]*entity.Folder, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, remote_id, project_id, name, sync_status, created_at, updated_at
	FROM folders WHERE project_id = ? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*entity.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating folders: %w", err)
	}
	return folders, nil
}

// DeleteFolder removes a folder. Returns nil if it doesn't exist (idempotent).
func (s *Store) DeleteFolder(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM folders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete folder %s: %w", id, err)
	}
	return nil
}

func scanFolder(row scanner) (*entity.Folder, error) {
	var f entity.Folder
	var remoteID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&f.ID,
		&remoteID,
		&f.ProjectID,
		&f.Name,
		(*string)(&f.SyncStatus),
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan folder: %w", err)
	}

	f.RemoteID = remoteID.String
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}
