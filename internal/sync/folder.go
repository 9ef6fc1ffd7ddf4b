package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
)

// folderSynchronizer pushes folder mutations to the remote service.
//
// Known limitation carried over from the original design: folder update
// and delete are pass-through no-ops. Folders are rarely renamed or
// removed once synced, and the remote API exposes no operations for it.
type folderSynchronizer struct {
	store  *store.Store
	remote remote.Client
}

func (s *folderSynchronizer) Sync(ctx context.Context, item *entity.OutboxItem) error {
	switch item.Operation {
	case entity.OpCreate:
		return s.create(ctx, item.EntityID)
	case entity.OpUpdate, entity.OpDelete:
		// Pass-through, see type comment.
		return nil
	default:
		return fmt.Errorf("unsupported folder operation %q", item.Operation)
	}
}

func (s *folderSynchronizer) create(ctx context.Context, id string) error {
	f, err := s.store.GetFolder(ctx, id)
	if err != nil {
		return classifyLookup(err)
	}

	project, err := s.store.GetProject(ctx, f.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Parent may still be waiting on its own create item.
			return failuref(ReasonMissingRemoteID, "parent project %s not available yet", f.ProjectID)
		}
		return err
	}
	if project.RemoteID == "" {
		return failuref(ReasonMissingRemoteID, "parent project %s has no remote id yet", f.ProjectID)
	}

	remoteID, err := s.remote.CreateFolder(ctx, project.RemoteID, f.Name)
	if err != nil {
		return classifyRemote(err)
	}

	f.RemoteID = remoteID
	f.SyncStatus = entity.StatusSynced
	if err := s.store.SaveFolder(ctx, f); err != nil {
		return fmt.Errorf("failed to store remote id for folder %s: %w", id, err)
	}
	return nil
}
