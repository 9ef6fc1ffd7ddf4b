package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
)

// photoSynchronizer pushes photo mutations to the remote service.
//
// Create is two-phase: upload the media bytes to a server-issued target,
// then create the remote photo record referencing the uploaded URL. The
// uploaded media URL is persisted onto the local record as soon as phase
// one completes, so a retry after a phase-two failure skips re-uploading
// and resumes at record creation.
type photoSynchronizer struct {
	store  *store.Store
	remote remote.Client
}

func (s *photoSynchronizer) Sync(ctx context.Context, item *entity.OutboxItem) error {
	switch item.Operation {
	case entity.OpCreate:
		return s.create(ctx, item.EntityID)
	case entity.OpUpdate, entity.OpDelete:
		// The remote API exposes no photo update or delete; server-side
		// removals propagate back through the reconciler instead.
		return nil
	default:
		return fmt.Errorf("unsupported photo operation %q", item.Operation)
	}
}

func (s *photoSynchronizer) create(ctx context.Context, id string) error {
	p, err := s.store.GetPhoto(ctx, id)
	if err != nil {
		return classifyLookup(err)
	}

	project, err := s.store.GetProject(ctx, p.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return failuref(ReasonMissingRemoteID, "parent project %s not available yet", p.ProjectID)
		}
		return err
	}
	if project.RemoteID == "" {
		return failuref(ReasonMissingRemoteID, "parent project %s has no remote id yet", p.ProjectID)
	}

	// Optional folder reference. A folder that exists but hasn't synced
	// blocks the photo; a folder row that vanished just drops the
	// reference.
	folderRemoteID := ""
	if p.FolderID != "" {
		folder, err := s.store.GetFolder(ctx, p.FolderID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			p.FolderID = ""
		case err != nil:
			return err
		case folder.RemoteID == "":
			return failuref(ReasonMissingRemoteID, "folder %s has no remote id yet", p.FolderID)
		default:
			folderRemoteID = folder.RemoteID
		}
	}

	// Phase one: upload media bytes, unless a previous attempt already
	// got them to the server.
	if p.RemoteURL == "" {
		if err := s.upload(ctx, p, project.RemoteID); err != nil {
			return err
		}
	}

	// Phase two: create the remote record.
	remoteID, err := s.remote.CreatePhoto(ctx, remote.PhotoRequest{
		ProjectID:    project.RemoteID,
		FolderID:     folderRemoteID,
		CapturedAt:   p.CapturedAt,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		MediaType:    p.MediaType,
		MediaURL:     p.RemoteURL,
		ThumbnailURL: p.ThumbnailURL,
		Note:         p.Note,
	})
	if err != nil {
		return classifyRemote(err)
	}

	p.RemoteID = remoteID
	p.SyncStatus = entity.StatusSynced
	if err := s.store.SavePhoto(ctx, p); err != nil {
		return fmt.Errorf("failed to store remote id for photo %s: %w", id, err)
	}
	return nil
}

// upload transfers the photo's media bytes and persists the resulting URLs
// onto the local record before returning, making the create item resumable.
func (s *photoSynchronizer) upload(ctx context.Context, p *entity.Photo, projectRemoteID string) error {
	data, err := os.ReadFile(p.LocalPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Media bytes are gone; this item can never succeed.
			return failure(ReasonEntityNotFound, err)
		}
		return failure(ReasonUploadFailed, err)
	}

	target, err := s.remote.GetUploadTarget(ctx, projectRemoteID, filepath.Base(p.LocalPath), p.MediaType)
	if err != nil {
		return classifyRemote(err)
	}
	if target.UploadURL == "" || target.MediaURL == "" {
		return failuref(ReasonInvalidUploadTarget, "upload target missing urls")
	}

	if err := s.remote.UploadBytes(ctx, target.UploadURL, data, p.MediaType); err != nil {
		return failure(ReasonUploadFailed, err)
	}

	p.RemoteURL = target.MediaURL
	p.ThumbnailURL = target.ThumbnailURL
	if err := s.store.SavePhoto(ctx, p); err != nil {
		return fmt.Errorf("failed to persist upload urls for photo %s: %w", p.ID, err)
	}
	return nil
}
