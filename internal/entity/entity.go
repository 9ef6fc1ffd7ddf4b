// Package entity defines the syncable record types shared by the local
// store and the sync engine.
//
// Every record carries a locally generated ID, an optional server-assigned
// remote ID, and a sync status. The local ID is stable for the record's
// lifetime and never reused; the remote ID is set exactly once, when the
// server accepts a create operation.
package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SyncStatus describes where a record stands relative to the server.
type SyncStatus string

const (
	// StatusPending indicates local changes not yet pushed to the server.
	StatusPending SyncStatus = "pending"
	// StatusSyncing indicates a push is currently in flight.
	StatusSyncing SyncStatus = "syncing"
	// StatusSynced indicates the server has the current version.
	StatusSynced SyncStatus = "synced"
	// StatusFailed indicates the retry budget was exhausted. The record
	// still needs sync and is surfaced to the user.
	StatusFailed SyncStatus = "failed"
)

// NeedsSync reports whether the record has local work the server hasn't seen.
func (s SyncStatus) NeedsSync() bool {
	return s == StatusPending || s == StatusFailed
}

// Type identifies the kind of syncable record.
type Type string

const (
	TypeProject   Type = "project"
	TypeFolder    Type = "folder"
	TypePhoto     Type = "photo"
	TypeComment   Type = "comment"
	TypeShareLink Type = "share_link"
)

// Valid reports whether t is a known entity type.
func (t Type) Valid() bool {
	switch t {
	case TypeProject, TypeFolder, TypePhoto, TypeComment, TypeShareLink:
		return true
	}
	return false
}

// Operation is the kind of remote mutation an outbox item represents.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Valid reports whether op is a known operation.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Priority orders outbox items within a drain. Higher values drain first.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityNormal   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// NewID generates a local identifier for a record or outbox item.
func NewID() string {
	return uuid.NewString()
}

// OutboxItem is one durable pending remote operation.
//
// Items are appended on every local mutation that must propagate remotely
// and removed only on confirmed successful remote application. Duplicate
// items for the same entity are allowed; the synchronizers tolerate
// operating on an entity whose earlier create hasn't landed yet.
type OutboxItem struct {
	ID            string
	EntityType    Type
	EntityID      string
	Operation     Operation
	Priority      Priority
	RetryCount    int
	LastAttemptAt *time.Time
	ErrorMessage  string
	CreatedAt     time.Time
}

// Validate checks the item has valid field values.
func (it *OutboxItem) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !it.EntityType.Valid() {
		return fmt.Errorf("unknown entity type %q", it.EntityType)
	}
	if it.EntityID == "" {
		return fmt.Errorf("entity id is required")
	}
	if !it.Operation.Valid() {
		return fmt.Errorf("unknown operation %q", it.Operation)
	}
	if it.Priority < PriorityLow || it.Priority > PriorityCritical {
		return fmt.Errorf("priority must be between %d and %d (got %d)",
			PriorityLow, PriorityCritical, int(it.Priority))
	}
	if it.RetryCount < 0 {
		return fmt.Errorf("retry count cannot be negative")
	}
	return nil
}
