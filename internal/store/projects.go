package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
)

// SaveProject inserts or updates a project.
// If a project with the same ID exists, it is updated.
func (s *Store) SaveProject(ctx context.Context, p *entity.Project) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid project: %w", err)
	}

	query := `
	INSERT INTO projects (
		id, remote_id, name, description, address,
		sync_status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		remote_id = excluded.remote_id,
		name = excluded.name,
		description = excluded.description,
		address = excluded.address,
		sync_status = excluded.sync_status,
		updated_at = excluded.updated_at
	`

	_, err := s.conn.ExecContext(ctx, query,
		p.ID,
		nullIfEmpty(p.RemoteID),
		p.Name,
		p.Description,
		p.Address,
		string(p.SyncStatus),
		p.CreatedAt.Format(time.RFC3339),
		p.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save project %s: %w", p.ID, err)
	}

	return nil
}

// GetProject retrieves a single project by local ID.
// Returns ErrNotFound if the project does not exist.
func (s *Store) GetProject(ctx context.Context, id string) (*entity.Project, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, remote_id, name, description, address,
	       sync_status, created_at, updated_at
	FROM projects WHERE id = ?`, id)

	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return p, err
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]*entity.Project, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, remote_id, name, description, address,
	       sync_status, created_at, updated_at
	FROM projects ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*entity.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

// DeleteProject removes a project and, via cascade, its folders, photos
// and share links. Returns nil if the project doesn't exist (idempotent).
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*entity.Project, error) {
	var p entity.Project
	var remoteID sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&p.ID,
		&remoteID,
		&p.Name,
		&p.Description,
		&p.Address,
		(*string)(&p.SyncStatus),
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	p.RemoteID = remoteID.String
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// nullIfEmpty converts an empty string to SQL NULL so remote-id indexes
// don't fill up with empty values.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
