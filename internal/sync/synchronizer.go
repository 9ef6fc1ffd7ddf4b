package sync

import (
	"context"

	"github.com/fieldscope/fieldscope/internal/entity"
	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
)

// Synchronizer translates one outbox item into remote operations for a
// single entity type.
//
// Sync returns nil on confirmed remote success. Failures should be *Error
// values from the taxonomy in errors.go so the engine can tell a droppable
// item from a retryable one; unclassified errors are retried.
//
// Implementations must be idempotent under retry: a synchronizer may run
// again for an item whose previous attempt partially succeeded (see the
// photo synchronizer's upload resume).
type Synchronizer interface {
	Sync(ctx context.Context, item *entity.OutboxItem) error
}

// defaultSynchronizers builds the production synchronizer registry.
func defaultSynchronizers(st *store.Store, client remote.Client) map[entity.Type]Synchronizer {
	return map[entity.Type]Synchronizer{
		entity.TypeProject:   &projectSynchronizer{store: st, remote: client},
		entity.TypeFolder:    &folderSynchronizer{store: st, remote: client},
		entity.TypePhoto:     &photoSynchronizer{store: st, remote: client},
		entity.TypeComment:   &commentSynchronizer{store: st, remote: client},
		entity.TypeShareLink: &shareLinkSynchronizer{},
	}
}
