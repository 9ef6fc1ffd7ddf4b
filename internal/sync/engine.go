package sync

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
)

// DefaultMaxRetries is how many attempts an outbox item gets before the
// owning entity is flagged failed and the item needs a manual retry.
const DefaultMaxRetries = 3

// Status is a read-only snapshot of the engine's session state, consumed
// by UI surfaces and the dashboard.
type Status struct {
	Syncing      bool
	Progress     float64
	LastSyncAt   time.Time
	LastError    string
	PendingCount int
}

// Config holds the engine's dependencies. Store and Remote are required
// for production use; Synchronizers overrides the default registry and is
// how tests inject fakes.
type Config struct {
	Store  *store.Store
	Remote remote.Client

	// Reachable reports current network availability. nil means always
	// reachable (useful in tests).
	Reachable func() bool

	// MaxRetries caps attempts per item (default DefaultMaxRetries).
	MaxRetries int

	// Synchronizers overrides the per-type registry (default: production
	// synchronizers built from Store and Remote).
	Synchronizers map[entity.Type]Synchronizer

	// OnEvent, if set, receives sync lifecycle events.
	OnEvent EventFunc

	// Logger for engine activity. nil means a default stderr logger.
	Logger *log.Logger
}

// Engine drains the outbox: it fetches the pending batch in priority/age
// order, dispatches each item to its entity synchronizer, applies the
// outcome, and keeps session state for observers. At most one drain runs
// at a time.
type Engine struct {
	store      *store.Store
	remote     remote.Client
	syncers    map[entity.Type]Synchronizer
	reachable  func() bool
	maxRetries int
	onEvent    EventFunc
	logger     *log.Logger

	mu           sync.Mutex
	syncing      bool
	progress     float64
	lastSyncAt   time.Time
	lastError    string
	pendingCount int
}

// New creates an Engine. See Config for defaults.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	syncers := cfg.Synchronizers
	if syncers == nil {
		syncers = defaultSynchronizers(cfg.Store, cfg.Remote)
	}

	return &Engine{
		store:      cfg.Store,
		remote:     cfg.Remote,
		syncers:    syncers,
		reachable:  cfg.Reachable,
		maxRetries: maxRetries,
		onEvent:    cfg.OnEvent,
		logger:     logger,
	}
}

// Restore seeds session state from persisted storage: the last successful
// sync timestamp and the pending count. Call once at startup.
func (e *Engine) Restore(ctx context.Context) error {
	last, err := e.store.LastSyncAt(ctx)
	if err != nil {
		return err
	}
	count, err := e.store.PendingCount(ctx, e.maxRetries)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.lastSyncAt = last
	e.pendingCount = count
	e.mu.Unlock()
	return nil
}

// Status returns a snapshot of the current session state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Syncing:      e.syncing,
		Progress:     e.progress,
		LastSyncAt:   e.lastSyncAt,
		LastError:    e.lastError,
		PendingCount: e.pendingCount,
	}
}

// MaxRetries returns the per-item retry cap.
func (e *Engine) MaxRetries() int {
	return e.maxRetries
}

// TriggerSync drains the currently pending outbox batch.
//
// It returns immediately as a no-op when a drain is already in progress,
// the network is unreachable, or no store is configured. Per-item errors
// never escape: the drain always completes, possibly with items still
// queued. If ctx expires mid-drain, the in-flight item finishes naturally
// and no further items are started; the outbox is the durable checkpoint
// and the next trigger resumes from persisted state.
func (e *Engine) TriggerSync(ctx context.Context) {
	if e.store == nil {
		return
	}
	if e.reachable != nil && !e.reachable() {
		return
	}

	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		return
	}
	e.syncing = true
	e.progress = 0
	e.lastError = ""
	e.mu.Unlock()

	start := time.Now()

	items, err := e.store.FetchPending(ctx, e.maxRetries)
	if err != nil {
		// The one batch-level failure mode: local storage unavailable.
		e.logger.Printf("Failed to fetch pending batch: %v", err)
		e.mu.Lock()
		e.lastError = err.Error()
		e.syncing = false
		e.mu.Unlock()
		return
	}

	if len(items) == 0 {
		e.mu.Lock()
		e.progress = 1.0
		e.syncing = false
		e.mu.Unlock()
		return
	}

	e.logger.Printf("Draining %d pending items", len(items))
	e.notify(Event{Kind: EventSyncStarted, Total: len(items)})

	completed := 0
	failed := 0
	for _, item := range items {
		// Budget expired: let the batch end; queued items survive.
		if ctx.Err() != nil {
			e.logger.Printf("Drain interrupted after %d/%d items: %v", completed+failed, len(items), ctx.Err())
			break
		}

		if err := e.processItem(ctx, item); err != nil {
			failed++
		} else {
			completed++
		}

		e.mu.Lock()
		e.progress = float64(completed+failed) / float64(len(items))
		e.mu.Unlock()
	}

	// The drain "completes" regardless of per-item outcomes.
	now := time.Now().UTC()
	if err := e.store.SetLastSyncAt(ctx, now); err != nil {
		e.logger.Printf("Warning: failed to persist last sync time: %v", err)
	}
	pending, err := e.store.PendingCount(ctx, e.maxRetries)
	if err != nil {
		e.logger.Printf("Warning: failed to recount pending items: %v", err)
		pending = -1
	}

	e.mu.Lock()
	e.lastSyncAt = now
	if pending >= 0 {
		e.pendingCount = pending
	}
	e.progress = 1.0
	e.syncing = false
	e.mu.Unlock()

	e.logger.Printf("Drain complete: %d synced, %d failed, %d still pending (%.2fs)",
		completed, failed, pending, time.Since(start).Seconds())
	e.notify(Event{
		Kind:      EventSyncCompleted,
		Completed: completed,
		Failed:    failed,
		Total:     len(items),
		Duration:  time.Since(start),
	})
}

// processItem dispatches one item and applies the outcome. The returned
// error is informational for batch accounting; it is never propagated.
func (e *Engine) processItem(ctx context.Context, item *entity.OutboxItem) error {
	syncer, ok := e.syncers[item.EntityType]
	if !ok {
		// Nothing can ever process this item; dropping beats wedging
		// the queue.
		e.logger.Printf("WARNING: no synchronizer for %s, dropping item %s", item.EntityType, item.ID)
		return e.store.RemoveItem(ctx, item.ID)
	}

	if item.Operation != entity.OpDelete {
		// Best effort; a vanished entity is caught by the synchronizer.
		_ = e.store.SetSyncStatus(ctx, item.EntityType, item.EntityID, entity.StatusSyncing)
	}

	err := syncer.Sync(ctx, item)
	if err == nil {
		if item.Operation != entity.OpDelete {
			// Synchronizers persist terminal state themselves on the
			// paths that talk to the remote, but pass-through operations
			// touch nothing; without this the entity would stay parked
			// in syncing after its item leaves the queue.
			_ = e.store.SetSyncStatus(ctx, item.EntityType, item.EntityID, entity.StatusSynced)
		}
		if rmErr := e.store.RemoveItem(ctx, item.ID); rmErr != nil {
			e.logger.Printf("Warning: item %s succeeded but could not be removed: %v", item.ID, rmErr)
		}
		e.notify(Event{
			Kind:       EventItemSynced,
			EntityType: item.EntityType,
			EntityID:   item.EntityID,
			Operation:  item.Operation,
		})
		return nil
	}

	if isDrop(err) {
		// Local record vanished: nothing to retry, drop silently.
		e.logger.Printf("Dropping item %s (%s %s): %v", item.ID, item.Operation, item.EntityType, err)
		if rmErr := e.store.RemoveItem(ctx, item.ID); rmErr != nil {
			e.logger.Printf("Warning: failed to drop item %s: %v", item.ID, rmErr)
		}
		return nil
	}

	e.logger.Printf("Item %s failed (%s %s %s): %v", item.ID, item.Operation, item.EntityType, item.EntityID, err)

	count, recErr := e.store.RecordFailure(ctx, item.ID, err)
	if recErr != nil {
		e.logger.Printf("Warning: failed to record failure for item %s: %v", item.ID, recErr)
		if item.Operation != entity.OpDelete {
			_ = e.store.SetSyncStatus(ctx, item.EntityType, item.EntityID, entity.StatusPending)
		}
		return err
	}

	if count >= e.maxRetries {
		// Retry budget spent: flag the entity so the UI can surface it.
		// The item itself stays queued for a manual retry.
		if stErr := e.store.SetSyncStatus(ctx, item.EntityType, item.EntityID, entity.StatusFailed); stErr != nil {
			e.logger.Printf("Warning: failed to flag %s %s: %v", item.EntityType, item.EntityID, stErr)
		}
		e.notify(Event{
			Kind:       EventEntityFailed,
			EntityType: item.EntityType,
			EntityID:   item.EntityID,
			Operation:  item.Operation,
			Error:      err.Error(),
		})
	} else if item.Operation != entity.OpDelete {
		// Back to pending; the entity still needs sync.
		_ = e.store.SetSyncStatus(ctx, item.EntityType, item.EntityID, entity.StatusPending)
	}

	e.notify(Event{
		Kind:       EventItemFailed,
		EntityType: item.EntityType,
		EntityID:   item.EntityID,
		Operation:  item.Operation,
		Error:      err.Error(),
	})
	return err
}
