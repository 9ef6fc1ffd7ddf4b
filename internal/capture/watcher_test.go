package capture

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/store"
)

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

func seedProject(t *testing.T, st *store.Store) *entity.Project {
	t.Helper()

	now := time.Now().UTC().Truncate(time.Second)
	p := &entity.Project{
		ID:         entity.NewID(),
		Name:       "Test Project",
		SyncStatus: entity.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := st.SaveProject(context.Background(), p); err != nil {
		t.Fatalf("Failed to seed project: %v", err)
	}
	return p
}

func testWatcher(t *testing.T, st *store.Store, defaultProjectID string, onIngest func(string)) *Watcher {
	t.Helper()

	tmp := t.TempDir()
	config := DefaultConfig(filepath.Join(tmp, "inbox"), filepath.Join(tmp, "media"))
	config.DefaultProjectID = defaultProjectID
	config.DebounceInterval = 50 * time.Millisecond
	config.Logger = log.New(io.Discard, "", 0)

	w, err := New(st, config, onIngest)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return w
}

// writeSidecar writes the JSON sidecar next to a media file.
func writeSidecar(t *testing.T, mediaPath string, sc *Sidecar) {
	t.Helper()

	data, err := json.Marshal(sc)
	if err != nil {
		t.Fatalf("Failed to marshal sidecar: %v", err)
	}
	if err := os.WriteFile(mediaPath+".json", data, 0o644); err != nil {
		t.Fatalf("Failed to write sidecar: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	st := newTestStore(t)
	tmp := t.TempDir()

	tests := []struct {
		name    string
		store   *store.Store
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid configuration",
			store:   st,
			config:  DefaultConfig(filepath.Join(tmp, "in"), filepath.Join(tmp, "out")),
			wantErr: false,
		},
		{
			name:    "nil store",
			store:   nil,
			config:  DefaultConfig(filepath.Join(tmp, "in"), filepath.Join(tmp, "out")),
			wantErr: true,
		},
		{
			name:    "nil config",
			store:   st,
			config:  nil,
			wantErr: true,
		},
		{
			name:    "missing inbox dir",
			store:   st,
			config:  DefaultConfig("", filepath.Join(tmp, "out")),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tt.store, tt.config, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if w != nil {
				w.watcher.Close()
			}
		})
	}
}

func TestIngest_WithSidecar(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	project := seedProject(t, st)
	w := testWatcher(t, st, "", nil)
	defer w.watcher.Close()

	if err := os.MkdirAll(w.config.InboxDir, 0o755); err != nil {
		t.Fatalf("Failed to create inbox: %v", err)
	}
	if err := os.MkdirAll(w.config.MediaDir, 0o755); err != nil {
		t.Fatalf("Failed to create media dir: %v", err)
	}

	mediaPath := filepath.Join(w.config.InboxDir, "site.jpg")
	if err := os.WriteFile(mediaPath, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatalf("Failed to write media file: %v", err)
	}
	captured := time.Now().UTC().Truncate(time.Second).Add(-time.Hour)
	writeSidecar(t, mediaPath, &Sidecar{
		ProjectID:  project.ID,
		CapturedAt: captured,
		Latitude:   47.61,
		Longitude:  -122.33,
		Note:       "east wall",
	})

	if err := w.ingest(ctx, mediaPath); err != nil {
		t.Fatalf("ingest() error = %v", err)
	}

	// The media file moved out of the inbox, the sidecar is consumed.
	if _, err := os.Stat(mediaPath); !os.IsNotExist(err) {
		t.Error("media file still in inbox after ingest")
	}
	if _, err := os.Stat(mediaPath + ".json"); !os.IsNotExist(err) {
		t.Error("sidecar still present after ingest")
	}

	photos, err := st.ListPhotos(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}
	if len(photos) != 1 {
		t.Fatalf("%d photos after ingest, want 1", len(photos))
	}
	photo := photos[0]
	if photo.SyncStatus != entity.StatusPending {
		t.Errorf("SyncStatus = %q, want pending", photo.SyncStatus)
	}
	if photo.MediaType != "image/jpeg" {
		t.Errorf("MediaType = %q, want image/jpeg", photo.MediaType)
	}
	if photo.Note != "east wall" || photo.Latitude != 47.61 {
		t.Errorf("sidecar metadata not applied: %+v", photo)
	}
	if !photo.CapturedAt.Equal(captured) {
		t.Errorf("CapturedAt = %v, want %v", photo.CapturedAt, captured)
	}
	if filepath.Dir(photo.LocalPath) != w.config.MediaDir {
		t.Errorf("LocalPath = %q, want a path under the media dir", photo.LocalPath)
	}
	if data, err := os.ReadFile(photo.LocalPath); err != nil || string(data) != "jpeg bytes" {
		t.Errorf("media bytes not preserved at %s: %v", photo.LocalPath, err)
	}

	// A create operation is queued for the drain.
	items, err := st.FetchPending(ctx, 3)
	if err != nil {
		t.Fatalf("FetchPending() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("%d outbox items, want 1", len(items))
	}
	if items[0].EntityType != entity.TypePhoto || items[0].EntityID != photo.ID {
		t.Errorf("outbox item = %+v, want photo create for %s", items[0], photo.ID)
	}
	if items[0].Operation != entity.OpCreate {
		t.Errorf("Operation = %q, want create", items[0].Operation)
	}
}

func TestIngest_NoProject(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	w := testWatcher(t, st, "", nil)
	defer w.watcher.Close()

	if err := os.MkdirAll(w.config.InboxDir, 0o755); err != nil {
		t.Fatalf("Failed to create inbox: %v", err)
	}
	mediaPath := filepath.Join(w.config.InboxDir, "orphan.jpg")
	if err := os.WriteFile(mediaPath, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatalf("Failed to write media file: %v", err)
	}

	// No sidecar project and no default: the file stays put.
	if err := w.ingest(ctx, mediaPath); err == nil {
		t.Error("ingest() succeeded without a project, want error")
	}
	if _, err := os.Stat(mediaPath); err != nil {
		t.Error("media file removed despite failed ingest")
	}
}

func TestStart_IngestsBacklogAndWatches(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	project := seedProject(t, st)

	ingested := make(chan string, 4)
	w := testWatcher(t, st, project.ID, func(photoID string) {
		ingested <- photoID
	})

	// A file already waiting when the watcher starts.
	if err := os.MkdirAll(w.config.InboxDir, 0o755); err != nil {
		t.Fatalf("Failed to create inbox: %v", err)
	}
	backlog := filepath.Join(w.config.InboxDir, "backlog.jpg")
	if err := os.WriteFile(backlog, []byte("old"), 0o644); err != nil {
		t.Fatalf("Failed to write backlog file: %v", err)
	}

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	select {
	case <-ingested:
	case <-time.After(2 * time.Second):
		t.Fatal("backlog file not ingested on start")
	}

	// A file dropped while watching.
	dropped := filepath.Join(w.config.InboxDir, "fresh.png")
	if err := os.WriteFile(dropped, []byte("new"), 0o644); err != nil {
		t.Fatalf("Failed to write dropped file: %v", err)
	}

	select {
	case <-ingested:
	case <-time.After(5 * time.Second):
		t.Fatal("dropped file not ingested")
	}

	photos, err := st.ListPhotos(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}
	if len(photos) != 2 {
		t.Errorf("%d photos, want 2", len(photos))
	}
}

func TestIngest_IgnoresUnknownExtensions(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	project := seedProject(t, st)
	w := testWatcher(t, st, project.ID, nil)
	defer w.watcher.Close()

	if err := os.MkdirAll(w.config.InboxDir, 0o755); err != nil {
		t.Fatalf("Failed to create inbox: %v", err)
	}
	if err := os.WriteFile(filepath.Join(w.config.InboxDir, "notes.txt"), []byte("text"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if err := w.ingestBacklog(ctx); err != nil {
		t.Fatalf("ingestBacklog() error = %v", err)
	}

	photos, err := st.ListPhotos(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListPhotos() error = %v", err)
	}
	if len(photos) != 0 {
		t.Errorf("%d photos from a txt file, want 0", len(photos))
	}
}
