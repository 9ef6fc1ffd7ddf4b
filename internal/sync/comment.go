package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
)

// commentSynchronizer pushes comment mutations to the remote service.
type commentSynchronizer struct {
	store  *store.Store
	remote remote.Client
}

func (s *commentSynchronizer) Sync(ctx context.Context, item *entity.OutboxItem) error {
	switch item.Operation {
	case entity.OpCreate:
		return s.create(ctx, item.EntityID)
	case entity.OpUpdate, entity.OpDelete:
		// The remote API exposes no comment update or delete.
		return nil
	default:
		return fmt.Errorf("unsupported comment operation %q", item.Operation)
	}
}

func (s *commentSynchronizer) create(ctx context.Context, id string) error {
	c, err := s.store.GetComment(ctx, id)
	if err != nil {
		return classifyLookup(err)
	}

	photo, err := s.store.GetPhoto(ctx, c.PhotoID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failuref(ReasonMissingRemoteID, "parent photo %s not available yet", c.PhotoID)
		}
		return err
	}
	if photo.RemoteID == "" {
		return failuref(ReasonMissingRemoteID, "parent photo %s has no remote id yet", c.PhotoID)
	}

	remoteID, err := s.remote.CreateComment(ctx, photo.RemoteID, c.Text)
	if err != nil {
		return classifyRemote(err)
	}

	c.RemoteID = remoteID
	c.SyncStatus = entity.StatusSynced
	if err := s.store.SaveComment(ctx, c); err != nil {
		return fmt.Errorf("failed to store remote id for comment %s: %w", id, err)
	}
	return nil
}
