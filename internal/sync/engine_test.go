package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
)

// newTestStore creates a file-backed store with the schema applied.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.InitSchema(context.Background()); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	return st
}

// syncerFunc adapts a function to the Synchronizer interface.
type syncerFunc func(ctx context.Context, item *entity.OutboxItem) error

func (f syncerFunc) Sync(ctx context.Context, item *entity.OutboxItem) error {
	return f(ctx, item)
}

// fakeClient implements remote.Client with overridable methods. Calls to
// methods without an override fail the test path with a recognizable error.
type fakeClient struct {
	createProject   func(ctx context.Context, req remote.ProjectRequest) (string, error)
	updateProject   func(ctx context.Context, remoteID string, req remote.ProjectRequest) error
	deleteProject   func(ctx context.Context, remoteID string) error
	createFolder    func(ctx context.Context, projectRemoteID, name string) (string, error)
	getUploadTarget func(ctx context.Context, projectRemoteID, filename, contentType string) (*remote.UploadTarget, error)
	uploadBytes     func(ctx context.Context, uploadURL string, data []byte, contentType string) error
	createPhoto     func(ctx context.Context, req remote.PhotoRequest) (string, error)
	createComment   func(ctx context.Context, photoRemoteID, text string) (string, error)
	createShareLink func(ctx context.Context, projectRemoteID string, expiresAt *time.Time) (*remote.ShareLinkDTO, error)
	getProjects     func(ctx context.Context) ([]remote.ProjectDTO, error)
	getPhotos       func(ctx context.Context, projectRemoteID string, page, limit int) (*remote.PhotoPage, error)
}

func (f *fakeClient) CreateProject(ctx context.Context, req remote.ProjectRequest) (string, error) {
	if f.createProject == nil {
		return "", errors.New("unexpected CreateProject call")
	}
	return f.createProject(ctx, req)
}

func (f *fakeClient) UpdateProject(ctx context.Context, remoteID string, req remote.ProjectRequest) error {
	if f.updateProject == nil {
		return errors.New("unexpected UpdateProject call")
	}
	return f.updateProject(ctx, remoteID, req)
}

func (f *fakeClient) DeleteProject(ctx context.Context, remoteID string) error {
	if f.deleteProject == nil {
		return errors.New("unexpected DeleteProject call")
	}
	return f.deleteProject(ctx, remoteID)
}

func (f *fakeClient) CreateFolder(ctx context.Context, projectRemoteID, name string) (string, error) {
	if f.createFolder == nil {
		return "", errors.New("unexpected CreateFolder call")
	}
	return f.createFolder(ctx, projectRemoteID, name)
}

func (f *fakeClient) GetUploadTarget(ctx context.Context, projectRemoteID, filename, contentType string) (*remote.UploadTarget, error) {
	if f.getUploadTarget == nil {
		return nil, errors.New("unexpected GetUploadTarget call")
	}
	return f.getUploadTarget(ctx, projectRemoteID, filename, contentType)
}

func (f *fakeClient) UploadBytes(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	if f.uploadBytes == nil {
		return errors.New("unexpected UploadBytes call")
	}
	return f.uploadBytes(ctx, uploadURL, data, contentType)
}

func (f *fakeClient) CreatePhoto(ctx context.Context, req remote.PhotoRequest) (string, error) {
	if f.createPhoto == nil {
		return "", errors.New("unexpected CreatePhoto call")
	}
	return f.createPhoto(ctx, req)
}

func (f *fakeClient) CreateComment(ctx context.Context, photoRemoteID, text string) (string, error) {
	if f.createComment == nil {
		return "", errors.New("unexpected CreateComment call")
	}
	return f.createComment(ctx, photoRemoteID, text)
}

func (f *fakeClient) CreateShareLink(ctx context.Context, projectRemoteID string, expiresAt *time.Time) (*remote.ShareLinkDTO, error) {
	if f.createShareLink == nil {
		return nil, errors.New("unexpected CreateShareLink call")
	}
	return f.createShareLink(ctx, projectRemoteID, expiresAt)
}

func (f *fakeClient) GetProjects(ctx context.Context) ([]remote.ProjectDTO, error) {
	if f.getProjects == nil {
		return nil, errors.New("unexpected GetProjects call")
	}
	return f.getProjects(ctx)
}

func (f *fakeClient) GetPhotos(ctx context.Context, projectRemoteID string, page, limit int) (*remote.PhotoPage, error) {
	if f.getPhotos == nil {
		return nil, errors.New("unexpected GetPhotos call")
	}
	return f.getPhotos(ctx, projectRemoteID, page, limit)
}

// seedProject inserts a project with the given status, assigning a remote
// ID when already synced.
func seedProject(t *testing.T, st *store.Store, status entity.SyncStatus) *entity.Project {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	p := &entity.Project{
		ID:         entity.NewID(),
		Name:       "Test Project",
		SyncStatus: status,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if status == entity.StatusSynced {
		p.RemoteID = "srv-" + p.ID[:8]
	}
	if err := st.SaveProject(context.Background(), p); err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}
	return p
}

func silentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestTriggerSync_DrainsQueue(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	project := seedProject(t, st, entity.StatusPending)
	if _, err := st.Enqueue(ctx, entity.TypeProject, project.ID, entity.OpCreate, entity.PriorityNormal); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	synced := 0
	engine := New(Config{
		Store: st,
		Synchronizers: map[entity.Type]Synchronizer{
			entity.TypeProject: syncerFunc(func(ctx context.Context, item *entity.OutboxItem) error {
				synced++
				return nil
			}),
		},
		Logger: silentLogger(),
	})

	engine.TriggerSync(ctx)

	if synced != 1 {
		t.Errorf("synchronizer invoked %d times, want 1", synced)
	}
	status := engine.Status()
	if status.Syncing {
		t.Error("Syncing = true after drain, want false")
	}
	if status.Progress != 1.0 {
		t.Errorf("Progress = %v, want 1.0", status.Progress)
	}
	if status.PendingCount != 0 {
		t.Errorf("PendingCount = %d, want 0", status.PendingCount)
	}
	if status.LastSyncAt.IsZero() {
		t.Error("LastSyncAt not set after non-empty drain")
	}

	// Persisted too, for the next session.
	last, err := st.LastSyncAt(ctx)
	if err != nil {
		t.Fatalf("LastSyncAt() error = %v", err)
	}
	if last.IsZero() {
		t.Error("last sync time not persisted")
	}
}

func TestTriggerSync_PartialFailureIsolation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var items []*entity.OutboxItem
	for i := 0; i < 3; i++ {
		p := seedProject(t, st, entity.StatusPending)
		item, err := st.Enqueue(ctx, entity.TypeProject, p.ID, entity.OpCreate, entity.PriorityNormal)
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		items = append(items, item)
	}
	failID := items[1].EntityID

	attempted := 0
	engine := New(Config{
		Store: st,
		Synchronizers: map[entity.Type]Synchronizer{
			entity.TypeProject: syncerFunc(func(ctx context.Context, item *entity.OutboxItem) error {
				attempted++
				if item.EntityID == failID {
					return failuref(ReasonNetworkUnavailable, "connection reset")
				}
				return nil
			}),
		},
		Logger: silentLogger(),
	})

	engine.TriggerSync(ctx)

	// One failure never stops the batch.
	if attempted != 3 {
		t.Errorf("attempted %d items, want 3", attempted)
	}

	remaining, err := st.FetchPending(ctx, DefaultMaxRetries)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("%d items remaining, want 1", len(remaining))
	}
	if remaining[0].ID != items[1].ID {
		t.Errorf("remaining item = %s, want the failed one %s", remaining[0].ID, items[1].ID)
	}
	if remaining[0].RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", remaining[0].RetryCount)
	}

	// The failed entity is back to pending, not failed: budget remains.
	p, err := st.GetProject(ctx, failID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if p.SyncStatus != entity.StatusPending {
		t.Errorf("failed entity status = %q, want pending", p.SyncStatus)
	}
}

func TestTriggerSync_RetryExhaustion(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	project := seedProject(t, st, entity.StatusPending)
	item, err := st.Enqueue(ctx, entity.TypeProject, project.ID, entity.OpCreate, entity.PriorityNormal)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	var events []Event
	engine := New(Config{
		Store: st,
		Synchronizers: map[entity.Type]Synchronizer{
			entity.TypeProject: syncerFunc(func(ctx context.Context, item *entity.OutboxItem) error {
				return failuref(ReasonRemoteRejected, "422 unprocessable")
			}),
		},
		OnEvent: func(ev Event) { events = append(events, ev) },
		Logger:  silentLogger(),
	})

	for i := 0; i < DefaultMaxRetries; i++ {
		engine.TriggerSync(ctx)
	}

	// Budget spent: the entity is flagged, the item stays queued but is
	// no longer eligible.
	p, err := st.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if p.SyncStatus != entity.StatusFailed {
		t.Errorf("entity status = %q, want failed", p.SyncStatus)
	}

	got, err := st.GetOutboxItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetOutboxItem() error = %v", err)
	}
	if got.RetryCount != DefaultMaxRetries {
		t.Errorf("RetryCount = %d, want %d", got.RetryCount, DefaultMaxRetries)
	}

	eligible, err := st.FetchPending(ctx, DefaultMaxRetries)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(eligible) != 0 {
		t.Errorf("%d items still eligible, want 0", len(eligible))
	}

	entityFailed := 0
	for _, ev := range events {
		if ev.Kind == EventEntityFailed {
			entityFailed++
		}
	}
	if entityFailed != 1 {
		t.Errorf("EventEntityFailed fired %d times, want 1", entityFailed)
	}
}

func TestTriggerSync_Unreachable(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	project := seedProject(t, st, entity.StatusPending)
	if _, err := st.Enqueue(ctx, entity.TypeProject, project.ID, entity.OpCreate, entity.PriorityNormal); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	invoked := false
	engine := New(Config{
		Store:     st,
		Reachable: func() bool { return false },
		Synchronizers: map[entity.Type]Synchronizer{
			entity.TypeProject: syncerFunc(func(ctx context.Context, item *entity.OutboxItem) error {
				invoked = true
				return nil
			}),
		},
		Logger: silentLogger(),
	})

	engine.TriggerSync(ctx)

	if invoked {
		t.Error("synchronizer invoked while unreachable")
	}
	items, err := st.FetchPending(ctx, DefaultMaxRetries)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("%d items pending, want 1 untouched", len(items))
	}
}

func TestTriggerSync_EmptyQueue(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	var events []Event
	engine := New(Config{
		Store:   st,
		OnEvent: func(ev Event) { events = append(events, ev) },
		Logger:  silentLogger(),
	})

	engine.TriggerSync(ctx)

	status := engine.Status()
	if status.Syncing {
		t.Error("Syncing = true after empty drain")
	}
	if status.Progress != 1.0 {
		t.Errorf("Progress = %v, want 1.0", status.Progress)
	}
	// An empty drain is not a sync: the last sync time stays untouched.
	if !status.LastSyncAt.IsZero() {
		t.Errorf("LastSyncAt = %v, want zero", status.LastSyncAt)
	}
	if len(events) != 0 {
		t.Errorf("%d events fired for an empty drain, want 0", len(events))
	}
}

func TestTriggerSync_MutualExclusion(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	project := seedProject(t, st, entity.StatusPending)
	if _, err := st.Enqueue(ctx, entity.TypeProject, project.ID, entity.OpCreate, entity.PriorityNormal); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	invocations := 0

	engine := New(Config{
		Store: st,
		Synchronizers: map[entity.Type]Synchronizer{
			entity.TypeProject: syncerFunc(func(ctx context.Context, item *entity.OutboxItem) error {
				invocations++
				close(entered)
				<-release
				return nil
			}),
		},
		Logger: silentLogger(),
	})

	done := make(chan struct{})
	go func() {
		engine.TriggerSync(ctx)
		close(done)
	}()

	<-entered
	if !engine.Status().Syncing {
		t.Error("Syncing = false while a drain is in flight")
	}

	// A second trigger during an active drain is a no-op.
	engine.TriggerSync(ctx)

	close(release)
	<-done

	if invocations != 1 {
		t.Errorf("synchronizer invoked %d times, want 1", invocations)
	}
}

func TestTriggerSync_DropsVanishedEntity(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	item, err := st.Enqueue(ctx, entity.TypeProject, "gone", entity.OpUpdate, entity.PriorityNormal)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	engine := New(Config{
		Store: st,
		Synchronizers: map[entity.Type]Synchronizer{
			entity.TypeProject: syncerFunc(func(ctx context.Context, item *entity.OutboxItem) error {
				return failuref(ReasonEntityNotFound, "project gone: not found")
			}),
		},
		Logger: silentLogger(),
	})

	engine.TriggerSync(ctx)

	// Dropped, not retried.
	if _, err := st.GetOutboxItem(ctx, item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetOutboxItem() error = %v, want ErrNotFound", err)
	}
}

func TestTriggerSync_ContextCancellation(t *testing.T) {
	st := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Critical item drains first and cancels the context; the normal
	// item must not be started.
	first := seedProject(t, st, entity.StatusPending)
	if _, err := st.Enqueue(ctx, entity.TypeProject, first.ID, entity.OpCreate, entity.PriorityCritical); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	second := seedProject(t, st, entity.StatusPending)
	if _, err := st.Enqueue(ctx, entity.TypeProject, second.ID, entity.OpCreate, entity.PriorityNormal); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	var processed []string
	engine := New(Config{
		Store: st,
		Synchronizers: map[entity.Type]Synchronizer{
			entity.TypeProject: syncerFunc(func(ctx context.Context, item *entity.OutboxItem) error {
				processed = append(processed, item.EntityID)
				cancel()
				return nil
			}),
		},
		Logger: silentLogger(),
	})

	engine.TriggerSync(ctx)

	if len(processed) != 1 || processed[0] != first.ID {
		t.Errorf("processed = %v, want only the critical item %s", processed, first.ID)
	}
	if engine.Status().Syncing {
		t.Error("Syncing = true after interrupted drain")
	}
}

func TestRestore(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	last := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	if err := st.SetLastSyncAt(ctx, last); err != nil {
		t.Fatalf("SetLastSyncAt() error = %v", err)
	}
	project := seedProject(t, st, entity.StatusPending)
	if _, err := st.Enqueue(ctx, entity.TypeProject, project.ID, entity.OpCreate, entity.PriorityNormal); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	engine := New(Config{Store: st, Logger: silentLogger()})
	if err := engine.Restore(ctx); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	status := engine.Status()
	if !status.LastSyncAt.Equal(last) {
		t.Errorf("LastSyncAt = %v, want %v", status.LastSyncAt, last)
	}
	if status.PendingCount != 1 {
		t.Errorf("PendingCount = %d, want 1", status.PendingCount)
	}
}

func TestCreateShareLink(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	synced := seedProject(t, st, entity.StatusSynced)
	unsynced := seedProject(t, st, entity.StatusPending)

	client := &fakeClient{
		createShareLink: func(ctx context.Context, projectRemoteID string, expiresAt *time.Time) (*remote.ShareLinkDTO, error) {
			if projectRemoteID != synced.RemoteID {
				return nil, fmt.Errorf("unknown project %s", projectRemoteID)
			}
			return &remote.ShareLinkDTO{
				ID:        "link-1",
				URL:       "https://share.fieldscope.dev/abc",
				ExpiresAt: expiresAt,
			}, nil
		},
	}
	engine := New(Config{Store: st, Remote: client, Logger: silentLogger()})

	link, err := engine.CreateShareLink(ctx, synced.ID, nil)
	if err != nil {
		t.Fatalf("CreateShareLink() error = %v", err)
	}
	if link.URL != "https://share.fieldscope.dev/abc" {
		t.Errorf("URL = %q", link.URL)
	}
	if link.SyncStatus != entity.StatusSynced {
		t.Errorf("SyncStatus = %q, want synced", link.SyncStatus)
	}

	stored, err := st.GetShareLink(ctx, link.ID)
	if err != nil {
		t.Fatalf("GetShareLink() error = %v", err)
	}
	if stored.RemoteID != "link-1" {
		t.Errorf("RemoteID = %q, want link-1", stored.RemoteID)
	}

	// A project that never synced has no remote ID to link against.
	if _, err := engine.CreateShareLink(ctx, unsynced.ID, nil); err == nil {
		t.Error("CreateShareLink() for unsynced project succeeded, want error")
	}
}

func TestTriggerSync_NoOpOperationEndsTerminal(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	project := seedProject(t, st, entity.StatusSynced)
	folder := seedFolder(t, st, project.ID, entity.StatusSynced)

	// A local rename re-marks the folder pending and queues an update,
	// which the folder synchronizer passes through without a remote call.
	if err := st.SetSyncStatus(ctx, entity.TypeFolder, folder.ID, entity.StatusPending); err != nil {
		t.Fatalf("SetSyncStatus() error = %v", err)
	}
	if _, err := st.Enqueue(ctx, entity.TypeFolder, folder.ID, entity.OpUpdate, entity.PriorityNormal); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	// An empty fake client turns any remote call into a failure, so a
	// clean drain here proves the pass-through stayed local.
	engine := New(Config{Store: st, Remote: &fakeClient{}, Logger: silentLogger()})
	engine.TriggerSync(ctx)

	got, err := st.GetFolder(ctx, folder.ID)
	if err != nil {
		t.Fatalf("GetFolder() error = %v", err)
	}
	if got.SyncStatus != entity.StatusSynced {
		t.Errorf("folder status after drain = %q, want %q", got.SyncStatus, entity.StatusSynced)
	}

	pending, err := st.PendingCount(ctx, DefaultMaxRetries)
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if pending != 0 {
		t.Errorf("pending count = %d, want 0", pending)
	}
}

func TestTriggerSync_LostFailureRecordRestoresPending(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	project := seedProject(t, st, entity.StatusPending)
	if _, err := st.Enqueue(ctx, entity.TypeProject, project.ID, entity.OpCreate, entity.PriorityNormal); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	engine := New(Config{
		Store: st,
		Synchronizers: map[entity.Type]Synchronizer{
			// The queue row vanishes underneath the drain, so recording
			// the failure has nothing to update.
			entity.TypeProject: syncerFunc(func(ctx context.Context, item *entity.OutboxItem) error {
				if err := st.RemoveItem(ctx, item.ID); err != nil {
					t.Fatalf("RemoveItem() error = %v", err)
				}
				return failuref(ReasonNetworkUnavailable, "connection reset")
			}),
		},
		Logger: silentLogger(),
	})
	engine.TriggerSync(ctx)

	got, err := st.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if got.SyncStatus != entity.StatusPending {
		t.Errorf("project status = %q, want %q", got.SyncStatus, entity.StatusPending)
	}
}
