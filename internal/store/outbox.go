package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fieldscope/fieldscope/internal/entity"
)

// Enqueue appends a durable outbox item for a local mutation that must
// propagate remotely. Duplicate enqueues for the same entity are allowed
// and produce separate items; the synchronizers tolerate the resulting
// out-of-date operations.
func (s *Store) Enqueue(ctx context.Context, typ entity.Type, entityID string, op entity.Operation, priority entity.Priority) (*entity.OutboxItem, error) {
	item := &entity.OutboxItem{
		ID:         entity.NewID(),
		EntityType: typ,
		EntityID:   entityID,
		Operation:  op,
		Priority:   priority,
		CreatedAt:  time.Now().UTC(),
	}
	if err := item.Validate(); err != nil {
		return nil, fmt.Errorf("invalid outbox item: %w", err)
	}

	query := `
	INSERT INTO outbox (
		id, entity_type, entity_id, operation, priority,
		retry_count, last_attempt_at, error_message, created_at
	) VALUES (?, ?, ?, ?, ?, 0, NULL, '', ?)
	`

	_, err := s.conn.ExecContext(ctx, query,
		item.ID,
		string(item.EntityType),
		item.EntityID,
		string(item.Operation),
		int(item.Priority),
		item.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s %s: %w", item.Operation, item.EntityType, err)
	}

	return item, nil
}

// FetchPending returns all items whose retry count is below maxRetry,
// ordered by priority descending, then creation time ascending.
//
// The ordering is a hard contract: critical operations jump ahead of
// routine uploads, and FIFO within a priority class prevents starvation.
// created_at carries second precision, so rowid breaks ties between items
// enqueued in the same second by insertion order.
func (s *Store) FetchPending(ctx context.Context, maxRetry int) ([]*entity.OutboxItem, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, entity_type, entity_id, operation, priority,
	       retry_count, last_attempt_at, error_message, created_at
	FROM outbox
	WHERE retry_count < ?
	ORDER BY priority DESC, created_at ASC, rowid ASC`, maxRetry)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending items: %w", err)
	}
	defer rows.Close()

	var items []*entity.OutboxItem
	for rows.Next() {
		item, err := scanOutboxItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox items: %w", err)
	}
	return items, nil
}

// GetOutboxItem retrieves a single outbox item by ID.
// Returns ErrNotFound if the item does not exist.
func (s *Store) GetOutboxItem(ctx context.Context, id string) (*entity.OutboxItem, error) {
	row := s.conn.QueryRowContext(ctx, `
	SELECT id, entity_type, entity_id, operation, priority,
	       retry_count, last_attempt_at, error_message, created_at
	FROM outbox WHERE id = ?`, id)

	item, err := scanOutboxItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("outbox item %s: %w", id, ErrNotFound)
	}
	return item, err
}

// RemoveItem deletes an outbox item on confirmed remote success.
// Returns nil if the item doesn't exist (idempotent).
func (s *Store) RemoveItem(ctx context.Context, itemID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM outbox WHERE id = ?`, itemID); err != nil {
		return fmt.Errorf("failed to remove outbox item %s: %w", itemID, err)
	}
	return nil
}

// RecordFailure increments the item's retry count and stores the attempt
// timestamp and error message, leaving the item queued. It returns the new
// retry count so the caller can decide whether the retry budget is spent.
func (s *Store) RecordFailure(ctx context.Context, itemID string, cause error) (int, error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	query := `
	UPDATE outbox
	SET retry_count = retry_count + 1,
	    last_attempt_at = ?,
	    error_message = ?
	WHERE id = ?
	`

	_, err := s.conn.ExecContext(ctx, query,
		time.Now().UTC().Format(time.RFC3339), msg, itemID)
	if err != nil {
		return 0, fmt.Errorf("failed to record failure for %s: %w", itemID, err)
	}

	var count int
	err = s.conn.QueryRowContext(ctx,
		`SELECT retry_count FROM outbox WHERE id = ?`, itemID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("outbox item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read retry count for %s: %w", itemID, err)
	}
	return count, nil
}

// PendingCount returns the number of items still eligible for a drain.
// Cheap enough to drive UI badges.
func (s *Store) PendingCount(ctx context.Context, maxRetry int) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE retry_count < ?`, maxRetry).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending items: %w", err)
	}
	return count, nil
}

// ExhaustedCount returns the number of items that spent their retry budget.
func (s *Store) ExhaustedCount(ctx context.Context, maxRetry int) (int, error) {
	var count int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outbox WHERE retry_count >= ?`, maxRetry).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count exhausted items: %w", err)
	}
	return count, nil
}

// ResetExhausted gives exhausted items a fresh retry budget and flips their
// owning entities from failed back to pending. This backs the user-visible
// "retry" action; the next drain picks the items up again.
func (s *Store) ResetExhausted(ctx context.Context, maxRetry int) (int, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT DISTINCT entity_type, entity_id FROM outbox WHERE retry_count >= ?`, maxRetry)
	if err != nil {
		return 0, fmt.Errorf("failed to query exhausted items: %w", err)
	}

	type ref struct {
		typ entity.Type
		id  string
	}
	var refs []ref
	for rows.Next() {
		var r ref
		if err := rows.Scan((*string)(&r.typ), &r.id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan exhausted item: %w", err)
		}
		refs = append(refs, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("error iterating exhausted items: %w", err)
	}
	rows.Close()

	res, err := tx.ExecContext(ctx, `
	UPDATE outbox
	SET retry_count = 0, error_message = ''
	WHERE retry_count >= ?`, maxRetry)
	if err != nil {
		return 0, fmt.Errorf("failed to reset retry counts: %w", err)
	}

	for _, r := range refs {
		table, ok := tableFor(r.typ)
		if !ok {
			continue
		}
		query := fmt.Sprintf(
			`UPDATE %s SET sync_status = ? WHERE id = ? AND sync_status = ?`, table)
		if _, err := tx.ExecContext(ctx, query,
			string(entity.StatusPending), r.id, string(entity.StatusFailed)); err != nil {
			return 0, fmt.Errorf("failed to reset %s %s: %w", r.typ, r.id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanOutboxItem(row scanner) (*entity.OutboxItem, error) {
	var item entity.OutboxItem
	var priority int
	var lastAttempt sql.NullString
	var createdAt string

	err := row.Scan(
		&item.ID,
		(*string)(&item.EntityType),
		&item.EntityID,
		(*string)(&item.Operation),
		&priority,
		&item.RetryCount,
		&lastAttempt,
		&item.ErrorMessage,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan outbox item: %w", err)
	}

	item.Priority = entity.Priority(priority)
	item.LastAttemptAt = nullStringToTime(lastAttempt)
	item.CreatedAt = parseTime(createdAt)
	return &item, nil
}
