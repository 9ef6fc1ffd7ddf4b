package sync

import (
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
)

// EventKind identifies a sync lifecycle event.
type EventKind string

const (
	// EventSyncStarted fires when a drain begins with a non-empty batch.
	EventSyncStarted EventKind = "sync_started"
	// EventItemSynced fires after an item is confirmed remotely and removed.
	EventItemSynced EventKind = "item_synced"
	// EventItemFailed fires after a failed attempt is recorded.
	EventItemFailed EventKind = "item_failed"
	// EventEntityFailed fires when an item exhausts its retry budget and
	// the owning entity is flagged failed.
	EventEntityFailed EventKind = "entity_failed"
	// EventSyncCompleted fires after the full batch was attempted.
	EventSyncCompleted EventKind = "sync_completed"
	// EventReconcileCompleted fires after a reconcile pass.
	EventReconcileCompleted EventKind = "reconcile_completed"
)

// Event describes one sync lifecycle occurrence. Fields are populated
// per kind; zero values mean not applicable.
type Event struct {
	Kind EventKind

	EntityType entity.Type
	EntityID   string
	Operation  entity.Operation
	Error      string

	Completed int
	Failed    int
	Total     int
	Duration  time.Duration
}

// EventFunc receives sync lifecycle events. Callbacks run on the drain
// goroutine and must not block.
type EventFunc func(Event)

func (e *Engine) notify(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}
