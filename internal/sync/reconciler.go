package sync

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
)

// DefaultPhotoPageLimit is the page size used when fetching a project's
// photos from the server.
const DefaultPhotoPageLimit = 50

// Reconciler merges authoritative server state into the local store.
//
// Matching is by remote ID: a known remote record overwrites the local
// copy's mutable fields, an unknown one becomes a new local record, and a
// local record whose remote counterpart disappeared is deleted — but only
// when its status is synced. Pending and failed records are local work
// the server hasn't seen yet and always survive, which is also what keeps
// a reconcile pass from resurrecting an in-flight delete or discarding
// unsynced edits while the push side runs.
type Reconciler struct {
	store     *store.Store
	remote    remote.Client
	logger    *log.Logger
	pageLimit int
	onEvent   EventFunc
}

// NewReconciler creates a Reconciler. If logger is nil, a default stderr
// logger is used.
func NewReconciler(st *store.Store, client remote.Client, logger *log.Logger) *Reconciler {
	if logger == nil {
		logger = log.New(os.Stderr, "[reconcile] ", log.LstdFlags)
	}
	return &Reconciler{
		store:     st,
		remote:    client,
		logger:    logger,
		pageLimit: DefaultPhotoPageLimit,
	}
}

// SetEventFunc registers a sync event callback for reconcile completions.
func (r *Reconciler) SetEventFunc(fn EventFunc) {
	r.onEvent = fn
}

// Run performs a full reconcile pass: projects with nested folders first,
// then every synced project's photos, page by page.
func (r *Reconciler) Run(ctx context.Context) error {
	start := time.Now()

	remoteProjects, err := r.remote.GetProjects(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch remote projects: %w", err)
	}

	if err := r.ReconcileProjects(ctx, remoteProjects); err != nil {
		return err
	}

	projects, err := r.store.ListProjects(ctx)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if p.RemoteID == "" {
			continue
		}
		photos, err := r.fetchAllPhotos(ctx, p.RemoteID)
		if err != nil {
			// Keep going; a failed photo fetch for one project must not
			// block the rest.
			r.logger.Printf("Warning: failed to fetch photos for project %s: %v", p.ID, err)
			continue
		}
		if err := r.ReconcilePhotos(ctx, p.ID, photos); err != nil {
			r.logger.Printf("Warning: failed to reconcile photos for project %s: %v", p.ID, err)
		}
	}

	r.logger.Printf("Reconcile complete (%.2fs)", time.Since(start).Seconds())
	if r.onEvent != nil {
		r.onEvent(Event{Kind: EventReconcileCompleted, Duration: time.Since(start)})
	}
	return nil
}

// fetchAllPhotos pages through a project's photos until the server reports
// no more.
func (r *Reconciler) fetchAllPhotos(ctx context.Context, projectRemoteID string) ([]remote.PhotoDTO, error) {
	var all []remote.PhotoDTO
	for page := 1; ; page++ {
		result, err := r.remote.GetPhotos(ctx, projectRemoteID, page, r.pageLimit)
		if err != nil {
			return nil, err
		}
		all = append(all, result.Data...)
		if !result.HasMore {
			return all, nil
		}
	}
}

// ReconcileProjects merges the remote project collection (with nested
// folders) into the local store.
func (r *Reconciler) ReconcileProjects(ctx context.Context, remoteProjects []remote.ProjectDTO) error {
	locals, err := r.store.ListProjects(ctx)
	if err != nil {
		return err
	}

	byRemote := make(map[string]*entity.Project, len(locals))
	for _, p := range locals {
		if p.RemoteID != "" {
			byRemote[p.RemoteID] = p
		}
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(remoteProjects))

	for _, dto := range remoteProjects {
		seen[dto.ID] = true

		local, exists := byRemote[dto.ID]
		if exists {
			local.Name = dto.Name
			local.Description = dto.Description
			local.Address = dto.Address
			local.SyncStatus = entity.StatusSynced
			local.UpdatedAt = now
		} else {
			local = &entity.Project{
				ID:          entity.NewID(),
				RemoteID:    dto.ID,
				Name:        dto.Name,
				Description: dto.Description,
				Address:     dto.Address,
				SyncStatus:  entity.StatusSynced,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
		}
		if err := r.store.SaveProject(ctx, local); err != nil {
			return err
		}

		if err := r.reconcileFolders(ctx, local.ID, dto.Folders); err != nil {
			return err
		}
	}

	// Server-side deletions propagate, but only onto records the server
	// has actually acknowledged. Anything pending or failed is local
	// work that must survive a snapshot predating it.
	for _, p := range locals {
		if p.RemoteID == "" || seen[p.RemoteID] {
			continue
		}
		if p.SyncStatus != entity.StatusSynced {
			continue
		}
		r.logger.Printf("Removing project %s (deleted on server)", p.ID)
		if err := r.store.DeleteProject(ctx, p.ID); err != nil {
			return err
		}
	}

	return nil
}

// reconcileFolders merges one project's remote folders into the local store.
func (r *Reconciler) reconcileFolders(ctx context.Context, projectID string, remoteFolders []remote.FolderDTO) error {
	locals, err := r.store.ListFolders(ctx, projectID)
	if err != nil {
		return err
	}

	byRemote := make(map[string]*entity.Folder, len(locals))
	for _, f := range locals {
		if f.RemoteID != "" {
			byRemote[f.RemoteID] = f
		}
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(remoteFolders))

	for _, dto := range remoteFolders {
		seen[dto.ID] = true

		local, exists := byRemote[dto.ID]
		if exists {
			local.Name = dto.Name
			local.SyncStatus = entity.StatusSynced
			local.UpdatedAt = now
		} else {
			local = &entity.Folder{
				ID:         entity.NewID(),
				RemoteID:   dto.ID,
				ProjectID:  projectID,
				Name:       dto.Name,
				SyncStatus: entity.StatusSynced,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
		}
		if err := r.store.SaveFolder(ctx, local); err != nil {
			return err
		}
	}

	for _, f := range locals {
		if f.RemoteID == "" || seen[f.RemoteID] {
			continue
		}
		if f.SyncStatus != entity.StatusSynced {
			continue
		}
		r.logger.Printf("Removing folder %s (deleted on server)", f.ID)
		if err := r.store.DeleteFolder(ctx, f.ID); err != nil {
			return err
		}
	}

	return nil
}

// ReconcilePhotos merges one project's remote photo collection into the
// local store. projectID is the local project ID; remotePhotos must be
// the complete collection for that project (all pages).
func (r *Reconciler) ReconcilePhotos(ctx context.Context, projectID string, remotePhotos []remote.PhotoDTO) error {
	locals, err := r.store.ListPhotos(ctx, projectID)
	if err != nil {
		return err
	}

	byRemote := make(map[string]*entity.Photo, len(locals))
	for _, p := range locals {
		if p.RemoteID != "" {
			byRemote[p.RemoteID] = p
		}
	}

	// Folder references arrive as remote IDs; translate to local ones.
	folders, err := r.store.ListFolders(ctx, projectID)
	if err != nil {
		return err
	}
	folderByRemote := make(map[string]string, len(folders))
	for _, f := range folders {
		if f.RemoteID != "" {
			folderByRemote[f.RemoteID] = f.ID
		}
	}

	now := time.Now().UTC()
	seen := make(map[string]bool, len(remotePhotos))

	for _, dto := range remotePhotos {
		seen[dto.ID] = true

		local, exists := byRemote[dto.ID]
		if exists {
			local.FolderID = folderByRemote[dto.FolderID]
			local.RemoteURL = dto.MediaURL
			local.ThumbnailURL = dto.ThumbnailURL
			local.Note = dto.Note
			local.SyncStatus = entity.StatusSynced
			local.UpdatedAt = now
		} else {
			local = &entity.Photo{
				ID:           entity.NewID(),
				RemoteID:     dto.ID,
				ProjectID:    projectID,
				FolderID:     folderByRemote[dto.FolderID],
				RemoteURL:    dto.MediaURL,
				ThumbnailURL: dto.ThumbnailURL,
				MediaType:    dto.MediaType,
				CapturedAt:   dto.CapturedAt,
				Latitude:     dto.Latitude,
				Longitude:    dto.Longitude,
				Note:         dto.Note,
				SyncStatus:   entity.StatusSynced,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
		}
		if err := r.store.SavePhoto(ctx, local); err != nil {
			return err
		}
	}

	for _, p := range locals {
		if p.RemoteID == "" || seen[p.RemoteID] {
			continue
		}
		if p.SyncStatus != entity.StatusSynced {
			continue
		}
		r.logger.Printf("Removing photo %s (deleted on server)", p.ID)
		if err := r.store.DeletePhoto(ctx, p.ID); err != nil {
			return err
		}
	}

	return nil
}
