package sync

import (
	"errors"
	"fmt"

	"github.com/fieldscope/fieldscope/internal/remote"
	"github.com/fieldscope/fieldscope/internal/store"
)

// Reason classifies a synchronizer failure.
type Reason string

const (
	// ReasonEntityNotFound means the local record vanished. The item is
	// dropped; there is nothing left to sync.
	ReasonEntityNotFound Reason = "entity_not_found"

	// ReasonMissingRemoteID means a dependency hasn't been created
	// remotely yet (parent project/photo has no remote ID). Retryable:
	// the dependency's own queue item may succeed in this or a later
	// drain.
	ReasonMissingRemoteID Reason = "missing_remote_id"

	// ReasonInvalidUploadTarget means the server handed back an unusable
	// upload target.
	ReasonInvalidUploadTarget Reason = "invalid_upload_target"

	// ReasonUploadFailed means transferring media bytes failed.
	ReasonUploadFailed Reason = "upload_failed"

	// ReasonRemoteRejected means the server refused the operation
	// (4xx-equivalent). Retried up to the cap like any other failure;
	// the design does not distinguish transient from permanent errors.
	ReasonRemoteRejected Reason = "remote_rejected"

	// ReasonNetworkUnavailable means the request never completed.
	ReasonNetworkUnavailable Reason = "network_unavailable"
)

// Error is a classified synchronizer failure.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return string(e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// failure wraps err with a reason.
func failure(reason Reason, err error) *Error {
	return &Error{Reason: reason, Err: err}
}

// failuref creates a classified failure from a format string.
func failuref(reason Reason, format string, args ...any) *Error {
	return &Error{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// classifyRemote converts a remote client error into a classified failure:
// an HTTP status error becomes a remote rejection, anything else (timeouts,
// DNS, connection refused) counts as network unavailability.
func classifyRemote(err error) *Error {
	var se *remote.StatusError
	if errors.As(err, &se) {
		return failure(ReasonRemoteRejected, err)
	}
	return failure(ReasonNetworkUnavailable, err)
}

// classifyLookup converts a store read error: a missing record means the
// entity vanished and the item should be dropped. Other storage errors
// stay unclassified and are retried like any failure.
func classifyLookup(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return failure(ReasonEntityNotFound, err)
	}
	return err
}

// isDrop reports whether err means the queue item should be dropped
// rather than retried.
func isDrop(err error) bool {
	var serr *Error
	return errors.As(err, &serr) && serr.Reason == ReasonEntityNotFound
}
