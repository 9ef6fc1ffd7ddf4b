// Package sync implements the offline sync engine: a durable,
// priority-ordered, retrying outbox drain that converts local mutations
// into idempotent remote operations, plus the pull-side reconciler that
// merges authoritative server state back into the local store.
//
// # Architecture
//
// Local mutations enqueue outbox items (store.Enqueue). A trigger — the
// reachability monitor reporting the network came back, an explicit call,
// a periodic tick — invokes Engine.TriggerSync, which drains the currently
// pending batch:
//
//  1. Fetch all items below the retry cap, ordered by priority descending
//     then age ascending.
//  2. Dispatch each item to the synchronizer for its entity type.
//  3. On success, remove the item and advance progress.
//  4. On failure, record the attempt and keep the item queued; once an
//     item's retry budget is spent, flag the owning entity as failed so
//     the UI can surface it.
//
// One item's failure never aborts the batch. Dependent entities (a folder
// whose project hasn't been created remotely yet) fail with a retryable
// dependency error and succeed on a later drain, after the parent's own
// item has landed. Items are processed strictly sequentially, which is
// what makes that ordering work without a dependency graph.
//
// At most one drain runs at a time: overlapping TriggerSync calls collapse
// into no-ops rather than queuing a second drain. The outbox is the
// durable checkpoint, so a drain cut short by a context deadline simply
// resumes from persisted queue state on the next trigger.
//
// # Error model
//
// Synchronizers return *Error values carrying a Reason from the taxonomy
// in errors.go. Only ReasonEntityNotFound drops an item; everything else
// is retried up to the cap. Per-item errors never escape TriggerSync. The
// one batch-level failure mode is being unable to fetch the pending batch
// at all (local storage unavailable), which aborts the drain and is
// surfaced through Status.LastError.
//
// # Reconciliation
//
// The Reconciler fetches remote projects (with nested folders) and pages
// of photos, overwrites local synced copies with the authoritative
// versions, creates local records for server-side additions, and deletes
// local records whose remote counterpart disappeared — but only when the
// local record is synced. Pending and failed records represent local work
// the server hasn't seen and always survive a reconcile pass.
package sync
