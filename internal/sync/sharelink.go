package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
)

// shareLinkSynchronizer is a deliberate no-op. Share links are created
// synchronously at user-action time (Engine.CreateShareLink) because the
// user is waiting for a URL to hand out; queueing one for a later drain
// would be useless. The type stays in the entity enum and the registry
// so a stray queue item completes cleanly instead of erroring forever.
type shareLinkSynchronizer struct{}

func (s *shareLinkSynchronizer) Sync(ctx context.Context, item *entity.OutboxItem) error {
	return nil
}

// CreateShareLink creates a share link for a project against the remote
// service and stores the result locally. Unlike the queued entity types
// this runs synchronously: it requires reachability and a project that
// has already synced.
func (e *Engine) CreateShareLink(ctx context.Context, projectID string, expiresAt *time.Time) (*entity.ShareLink, error) {
	project, err := e.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.RemoteID == "" {
		return nil, fmt.Errorf("project %s has not synced yet; cannot create a share link", projectID)
	}

	dto, err := e.remote.CreateShareLink(ctx, project.RemoteID, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create share link: %w", err)
	}

	now := time.Now().UTC()
	link := &entity.ShareLink{
		ID:         entity.NewID(),
		RemoteID:   dto.ID,
		ProjectID:  projectID,
		URL:        dto.URL,
		ExpiresAt:  dto.ExpiresAt,
		SyncStatus: entity.StatusSynced,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.SaveShareLink(ctx, link); err != nil {
		return nil, err
	}

	e.logger.Printf("Created share link %s for project %s", link.URL, projectID)
	return link, nil
}
