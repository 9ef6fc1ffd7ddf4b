// Package capture ingests media dropped into the inbox directory.
//
// The camera and location layers are outside this system; their hand-off
// point is a directory. Each media file dropped there, optionally paired
// with a JSON sidecar carrying capture metadata, becomes a pending Photo
// with a queued create operation. The watcher debounces rapid writes so
// a file still being copied isn't ingested half-written.
package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/store"
)

// Sidecar is the optional JSON metadata file accompanying a media file.
// For media file "x.jpg" the sidecar is "x.jpg.json".
type Sidecar struct {
	ProjectID  string    `json:"project_id,omitempty"`
	FolderID   string    `json:"folder_id,omitempty"`
	CapturedAt time.Time `json:"captured_at,omitempty"`
	Latitude   float64   `json:"latitude,omitempty"`
	Longitude  float64   `json:"longitude,omitempty"`
	Note       string    `json:"note,omitempty"`
}

// mediaTypes maps recognized file extensions to MIME types.
var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
}

// Config holds configuration for the Watcher.
type Config struct {
	// InboxDir is the watched drop directory.
	InboxDir string

	// MediaDir is where ingested media files are moved. Photos keep
	// pointing at these paths until upload completes.
	MediaDir string

	// DefaultProjectID receives media without a sidecar project. If
	// empty, such files are left in the inbox with a warning.
	DefaultProjectID string

	// DebounceInterval is how long a file must sit unchanged before
	// ingestion (default 500ms).
	DebounceInterval time.Duration

	// Logger for watcher activity. nil means a default stderr logger.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults for the given directories.
func DefaultConfig(inboxDir, mediaDir string) *Config {
	return &Config{
		InboxDir:         inboxDir,
		MediaDir:         mediaDir,
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[capture] ", log.LstdFlags),
	}
}

// Watcher monitors the inbox directory and turns dropped media into
// pending photos with queued create operations.
type Watcher struct {
	store    *store.Store
	config   *Config
	onIngest func(photoID string)

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // filepath -> last event
	changeQueueMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Watcher. onIngest is called with the new photo's local ID
// after each successful ingestion; the daemon uses it to trigger a drain.
func New(st *store.Store, config *Config, onIngest func(photoID string)) (*Watcher, error) {
	if st == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil || config.InboxDir == "" || config.MediaDir == "" {
		return nil, fmt.Errorf("inbox and media directories are required")
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[capture] ", log.LstdFlags)
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		store:       st,
		config:      config,
		onIngest:    onIngest,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
	}, nil
}

// Start ingests any backlog already sitting in the inbox, then begins
// watching for new files. Returns after the goroutines are running.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.config.InboxDir, 0755); err != nil {
		return fmt.Errorf("failed to create inbox directory: %w", err)
	}
	if err := os.MkdirAll(w.config.MediaDir, 0755); err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	if err := w.ingestBacklog(ctx); err != nil {
		cancel()
		return err
	}

	if err := w.watcher.Add(w.config.InboxDir); err != nil {
		cancel()
		return fmt.Errorf("failed to watch inbox directory: %w", err)
	}

	w.config.Logger.Printf("Watching inbox: %s", w.config.InboxDir)

	w.wg.Add(2)
	go w.watchFileEvents(ctx)
	go w.processChangeQueue(ctx)

	return nil
}

// Stop halts watching and waits for the goroutines to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if err := w.watcher.Close(); err != nil {
		w.config.Logger.Printf("Error closing watcher: %v", err)
	}
	w.wg.Wait()
}

// ingestBacklog processes media files that arrived while we weren't
// watching.
func (w *Watcher) ingestBacklog(ctx context.Context) error {
	entries, err := os.ReadDir(w.config.InboxDir)
	if err != nil {
		return fmt.Errorf("failed to read inbox directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(w.config.InboxDir, e.Name())
		if _, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]; !ok {
			continue
		}
		if err := w.ingest(ctx, path); err != nil {
			w.config.Logger.Printf("WARNING: failed to ingest %s: %v", e.Name(), err)
		}
	}
	return nil
}

// watchFileEvents monitors filesystem events and queues media files.
func (w *Watcher) watchFileEvents(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if _, ok := mediaTypes[strings.ToLower(filepath.Ext(event.Name))]; !ok {
				continue
			}
			w.queueChange(event.Name)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange records a file event for debounced processing.
func (w *Watcher) queueChange(path string) {
	w.changeQueueMu.Lock()
	defer w.changeQueueMu.Unlock()
	w.changeQueue[path] = time.Now()
}

// processChangeQueue ingests files whose events have settled.
func (w *Watcher) processChangeQueue(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) processSettled(ctx context.Context) {
	w.changeQueueMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range w.changeQueue {
		if now.Sub(queuedAt) < w.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(w.changeQueue, path)
	}
	w.changeQueueMu.Unlock()

	for _, path := range ready {
		if err := w.ingest(ctx, path); err != nil {
			w.config.Logger.Printf("WARNING: failed to ingest %s: %v", filepath.Base(path), err)
		}
	}
}

// ingest converts one inbox media file into a pending photo: read the
// sidecar, move the file into the media directory, persist the record,
// and enqueue the create operation.
func (w *Watcher) ingest(ctx context.Context, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// Removed before we got to it.
		return nil
	}

	mediaType := mediaTypes[strings.ToLower(filepath.Ext(path))]

	sidecar, err := w.readSidecar(path)
	if err != nil {
		return err
	}

	projectID := sidecar.ProjectID
	if projectID == "" {
		projectID = w.config.DefaultProjectID
	}
	if projectID == "" {
		return fmt.Errorf("no project for %s and no default configured", filepath.Base(path))
	}
	if _, err := w.store.GetProject(ctx, projectID); err != nil {
		return fmt.Errorf("project %s: %w", projectID, err)
	}

	photoID := entity.NewID()
	dest := filepath.Join(w.config.MediaDir, photoID+strings.ToLower(filepath.Ext(path)))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("failed to move media file: %w", err)
	}

	capturedAt := sidecar.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	photo := &entity.Photo{
		ID:         photoID,
		ProjectID:  projectID,
		FolderID:   sidecar.FolderID,
		LocalPath:  dest,
		MediaType:  mediaType,
		CapturedAt: capturedAt,
		Latitude:   sidecar.Latitude,
		Longitude:  sidecar.Longitude,
		Note:       sidecar.Note,
		SyncStatus: entity.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := w.store.SavePhoto(ctx, photo); err != nil {
		return err
	}

	if _, err := w.store.Enqueue(ctx, entity.TypePhoto, photoID, entity.OpCreate, entity.PriorityNormal); err != nil {
		return err
	}

	w.config.Logger.Printf("Ingested %s as photo %s (project %s)", filepath.Base(path), photoID, projectID)

	if w.onIngest != nil {
		w.onIngest(photoID)
	}
	return nil
}

// readSidecar loads and removes the sidecar file for a media path, if one
// exists.
func (w *Watcher) readSidecar(mediaPath string) (*Sidecar, error) {
	sidecarPath := mediaPath + ".json"

	data, err := os.ReadFile(sidecarPath)
	if os.IsNotExist(err) {
		return &Sidecar{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar: %w", err)
	}

	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse sidecar %s: %w", filepath.Base(sidecarPath), err)
	}

	if err := os.Remove(sidecarPath); err != nil {
		w.config.Logger.Printf("Warning: failed to remove sidecar %s: %v", sidecarPath, err)
	}
	return &sc, nil
}
