package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/fieldscope/fieldscope/internal/store"
	syncpkg "github.com/fieldscope/fieldscope/internal/sync"
)

// Handler translates sync lifecycle events into dashboard broadcasts.
// It implements the sync engine's event callback.
type Handler struct {
	server     *Server
	store      *store.Store
	maxRetries int
	logger     *log.Logger
}

// NewHandler creates an event handler that broadcasts to the given server.
func NewHandler(server *Server, st *store.Store, maxRetries int, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		server:     server,
		store:      st,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// OnEvent receives a sync event and broadcasts the corresponding message.
// It is safe to pass as sync.Config.OnEvent.
func (h *Handler) OnEvent(ev syncpkg.Event) {
	switch ev.Kind {
	case syncpkg.EventSyncStarted:
		h.broadcast(MessageTypeSyncStarted, SyncStartedData{
			Total: ev.Total,
		})

	case syncpkg.EventItemSynced:
		h.broadcast(MessageTypeItemResult, ItemResultData{
			EntityType: string(ev.EntityType),
			EntityID:   ev.EntityID,
			Operation:  string(ev.Operation),
			Success:    true,
		})

	case syncpkg.EventItemFailed:
		h.broadcast(MessageTypeItemResult, ItemResultData{
			EntityType: string(ev.EntityType),
			EntityID:   ev.EntityID,
			Operation:  string(ev.Operation),
			Success:    false,
			Error:      ev.Error,
		})

	case syncpkg.EventEntityFailed:
		h.broadcast(MessageTypeEntityFailed, EntityFailedData{
			EntityType: string(ev.EntityType),
			EntityID:   ev.EntityID,
			Error:      ev.Error,
		})

	case syncpkg.EventSyncCompleted:
		h.broadcast(MessageTypeSyncCompleted, SyncCompletedData{
			Completed: ev.Completed,
			Failed:    ev.Failed,
			Total:     ev.Total,
			Duration:  ev.Duration,
		})
		h.broadcastStats()

	case syncpkg.EventReconcileCompleted:
		h.broadcast(MessageTypeReconcileCompleted, ReconcileCompletedData{
			Duration: ev.Duration,
		})
		h.broadcastStats()
	}
}

// broadcastStats sends current queue statistics to all clients.
func (h *Handler) broadcastStats() {
	if h.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pending, err := h.store.PendingCount(ctx, h.maxRetries)
	if err != nil {
		h.logger.Printf("Failed to count pending items: %v", err)
		return
	}
	exhausted, err := h.store.ExhaustedCount(ctx, h.maxRetries)
	if err != nil {
		h.logger.Printf("Failed to count exhausted items: %v", err)
		return
	}

	h.broadcast(MessageTypeStats, StatsData{
		Pending:   pending,
		Exhausted: exhausted,
	})
}

func (h *Handler) broadcast(msgType MessageType, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", msgType, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      raw,
	})
}
