package store

import (
	"context"
	"fmt"

	"github.com/fieldscope/fieldscope/internal/entity"
)

// tableFor maps an entity type to its table name.
func tableFor(typ entity.Type) (string, bool) {
	switch typ {
	case entity.TypeProject:
		return "projects", true
	case entity.TypeFolder:
		return "folders", true
	case entity.TypePhoto:
		return "photos", true
	case entity.TypeComment:
		return "comments", true
	case entity.TypeShareLink:
		return "share_links", true
	}
	return "", false
}

// SetSyncStatus updates the sync status of a single entity.
// Returns nil if the entity doesn't exist; a vanished entity has nothing
// to flag.
func (s *Store) SetSyncStatus(ctx context.Context, typ entity.Type, id string, status entity.SyncStatus) error {
	table, ok := tableFor(typ)
	if !ok {
		return fmt.Errorf("unknown entity type %q", typ)
	}

	query := fmt.Sprintf(`UPDATE %s SET sync_status = ? WHERE id = ?`, table)
	if _, err := s.conn.ExecContext(ctx, query, string(status), id); err != nil {
		return fmt.Errorf("failed to set %s %s status: %w", typ, id, err)
	}
	return nil
}

// CountByStatus returns how many records of the given type are in the
// given sync status. Drives the status command and the dashboard stats.
func (s *Store) CountByStatus(ctx context.Context, typ entity.Type, status entity.SyncStatus) (int, error) {
	table, ok := tableFor(typ)
	if !ok {
		return 0, fmt.Errorf("unknown entity type %q", typ)
	}

	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE sync_status = ?`, table)
	err := s.conn.QueryRowContext(ctx, query, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s by status: %w", typ, err)
	}
	return count, nil
}
