package sync

import (
	"context"
	"fmt"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
)

// projectSynchronizer pushes project mutations to the remote service.
type projectSynchronizer struct {
	store  *store.Store
	remote remote.Client
}

func (s *projectSynchronizer) Sync(ctx context.Context, item *entity.OutboxItem) error {
	switch item.Operation {
	case entity.OpCreate:
		return s.create(ctx, item.EntityID)
	case entity.OpUpdate:
		return s.update(ctx, item.EntityID)
	case entity.OpDelete:
		return s.delete(ctx, item.EntityID)
	default:
		return fmt.Errorf("unsupported project operation %q", item.Operation)
	}
}

func (s *projectSynchronizer) create(ctx context.Context, id string) error {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return classifyLookup(err)
	}

	remoteID, err := s.remote.CreateProject(ctx, remote.ProjectRequest{
		Name:        p.Name,
		Description: p.Description,
		Address:     p.Address,
	})
	if err != nil {
		return classifyRemote(err)
	}

	p.RemoteID = remoteID
	p.SyncStatus = entity.StatusSynced
	if err := s.store.SaveProject(ctx, p); err != nil {
		return fmt.Errorf("failed to store remote id for project %s: %w", id, err)
	}
	return nil
}

func (s *projectSynchronizer) update(ctx context.Context, id string) error {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		return classifyLookup(err)
	}
	if p.RemoteID == "" {
		return failuref(ReasonMissingRemoteID, "project %s has no remote id yet", id)
	}

	err = s.remote.UpdateProject(ctx, p.RemoteID, remote.ProjectRequest{
		Name:        p.Name,
		Description: p.Description,
		Address:     p.Address,
	})
	if err != nil {
		return classifyRemote(err)
	}

	p.SyncStatus = entity.StatusSynced
	if err := s.store.SaveProject(ctx, p); err != nil {
		return fmt.Errorf("failed to mark project %s synced: %w", id, err)
	}
	return nil
}

// delete removes the project remotely, then locally. A project that never
// gained a remote id has nothing to delete remotely and succeeds trivially.
func (s *projectSynchronizer) delete(ctx context.Context, id string) error {
	p, err := s.store.GetProject(ctx, id)
	if err != nil {
		// Row already gone; the delete is effective.
		return classifyLookup(err)
	}

	if p.RemoteID != "" {
		if err := s.remote.DeleteProject(ctx, p.RemoteID); err != nil {
			return classifyRemote(err)
		}
	}

	if err := s.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("failed to delete project %s locally: %w", id, err)
	}
	return nil
}
