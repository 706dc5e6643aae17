package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Enqueue inserts a newly-detected snapshot into datafeed_queue. Called
// by the Fetcher, never inside the reconciler's transaction.
func Enqueue(ctx context.Context, q Querier, updatedAt time.Time, payload []byte) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO datafeed_queue (id, updated_at, payload) VALUES ($1, $2, $3)`,
		id, updatedAt, payload)
	return mapPgError(err, "enqueue")
}

// ClaimOldest locks and returns the oldest pending queue row within the
// caller's transaction (FIFO drain, idx_queue_created_at). The row is
// not deleted here; the reconciler deletes it in the same transaction
// once reconciliation succeeds.
func ClaimOldest(ctx context.Context, q Querier) (*QueueEntry, error) {
	row := q.QueryRow(ctx, `
		SELECT id, updated_at, payload FROM datafeed_queue
		ORDER BY created_at ASC LIMIT 1 FOR UPDATE`)

	var e QueueEntry
	if err := row.Scan(&e.ID, &e.UpdatedAt, &e.Payload); err != nil {
		return nil, mapPgError(err, "claim_oldest")
	}
	return &e, nil
}

// DeleteQueueEntry removes a consumed queue row.
func DeleteQueueEntry(ctx context.Context, q Querier, id uuid.UUID) error {
	_, err := q.Exec(ctx, `DELETE FROM datafeed_queue WHERE id = $1`, id)
	return mapPgError(err, "delete_queue_entry")
}

// QueueDepth returns the number of pending queue rows.
func QueueDepth(ctx context.Context, q Querier) (int, error) {
	row := q.QueryRow(ctx, `SELECT count(*) FROM datafeed_queue`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapPgError(err, "queue_depth")
	}
	return n, nil
}

// HighWaterMark returns max(updated_at) across both the queue and the
// archive, seeding the Fetcher's in-memory novelty cutoff at startup.
func HighWaterMark(ctx context.Context, q Querier) (time.Time, error) {
	row := q.QueryRow(ctx, `
		SELECT greatest(
			coalesce((SELECT max(updated_at) FROM datafeed_queue), 'epoch'::timestamptz),
			coalesce((SELECT max(updated_at) FROM datafeed_archive), 'epoch'::timestamptz)
		)`)
	var t time.Time
	if err := row.Scan(&t); err != nil {
		return time.Time{}, mapPgError(err, "high_water_mark")
	}
	return t, nil
}
