// Package reconciler implements the session-lifecycle state machine:
// it diffs one feed snapshot against the three tables of currently-
// active sessions and emits open / refresh / close operations,
// archives the snapshot, and samples activity — atomically, in one
// database transaction per snapshot.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atcfeed/sessiond/internal/logger"
	"github.com/atcfeed/sessiond/internal/telemetry"
	"github.com/atcfeed/sessiond/pkg/feed"
	"github.com/atcfeed/sessiond/pkg/metrics"
	storepg "github.com/atcfeed/sessiond/pkg/store/postgres"
)

// Result summarizes one reconciliation for logging and metrics.
type Result struct {
	SnapshotAt        time.Time
	Opened            int
	Closed            int
	Refreshed         int
	Skipped           int
	ActiveControllers int
	ActiveCallsigns   int
	ActivePositions   int
	// Duplicate is true when the snapshot was already archived: the
	// transaction aborted at the archive's unique-violation check and
	// rolled back, but the stale queue row still had to be dropped in
	// a follow-up transaction.
	Duplicate bool
}

// Reconciler applies queued snapshots to the session tables.
type Reconciler struct {
	pool *pgxpool.Pool
}

// New builds a Reconciler over pool.
func New(pool *pgxpool.Pool) *Reconciler {
	return &Reconciler{pool: pool}
}

// ProcessOne drains the single oldest queue row and reconciles it, all
// within one transaction. Returns (nil, false, nil) when the queue is
// empty.
func (r *Reconciler) ProcessOne(ctx context.Context) (*Result, bool, error) {
	start := time.Now()
	ctx, span := telemetry.StartReconcileSpan(ctx, time.Time{})
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("reconciler: begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after Commit

	entry, err := storepg.ClaimOldest(ctx, tx)
	if storepg.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reconciler: claim oldest: %w", err)
	}

	snapshot, err := feed.ParseSnapshot(entry.Payload)
	if err != nil {
		// Parse/schema mismatch: drop the snapshot, continue ingestion.
		// The bad payload is still consumed from the queue so it is
		// never retried.
		if delErr := storepg.DeleteQueueEntry(ctx, tx, entry.ID); delErr != nil {
			return nil, false, fmt.Errorf("reconciler: drop malformed snapshot: %w", delErr)
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return nil, false, fmt.Errorf("reconciler: commit drop: %w", commitErr)
		}
		metrics.ReconciliationsTotal.WithLabelValues("dropped_malformed").Inc()
		logger.WarnCtx(ctx, "dropped malformed snapshot", logger.Err(err))
		return nil, true, nil
	}

	result, err := reconcile(ctx, tx, snapshot, entry.Payload)
	if err != nil {
		if isArchiveDuplicate(err) {
			_ = tx.Rollback(ctx) // release the claimed row's lock first
			if delErr := dropStaleQueueEntry(ctx, r.pool, entry.ID); delErr != nil {
				return nil, false, fmt.Errorf("reconciler: drop duplicate queue entry: %w", delErr)
			}
			metrics.ReconciliationsTotal.WithLabelValues("duplicate").Inc()
			logger.WarnCtx(ctx, "snapshot already archived, dropping queue entry", logger.SnapshotAt(snapshot.UpdatedAt))
			return &Result{SnapshotAt: snapshot.UpdatedAt, Duplicate: true}, true, nil
		}
		telemetry.RecordError(ctx, err)
		return nil, false, fmt.Errorf("reconciler: reconcile: %w", err)
	}

	if err := storepg.DeleteQueueEntry(ctx, tx, entry.ID); err != nil {
		return nil, false, fmt.Errorf("reconciler: delete queue entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("reconciler: commit: %w", err)
	}

	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	metrics.ReconciliationsTotal.WithLabelValues("committed").Inc()
	metrics.ActiveSessions.WithLabelValues("controller").Set(float64(result.ActiveControllers))
	metrics.ActiveSessions.WithLabelValues("callsign").Set(float64(result.ActiveCallsigns))
	metrics.ActiveSessions.WithLabelValues("position").Set(float64(result.ActivePositions))

	logger.InfoCtx(ctx, "reconciled snapshot",
		logger.SnapshotAt(result.SnapshotAt), logger.Opened(result.Opened),
		logger.Closed(result.Closed), logger.Refreshed(result.Refreshed), logger.Skipped(result.Skipped))

	return result, true, nil
}

// isArchiveDuplicate reports whether err is the archive's unique
// violation on updated_at specifically (as opposed to some other
// constraint violation, which is treated as a programmer error to
// surface rather than swallow).
func isArchiveDuplicate(err error) bool {
	se, ok := asStoreError(err)
	return ok && se.Code == storepg.ErrAlreadyExists && se.Operation == "insert_archive"
}

func asStoreError(err error) (*storepg.StoreError, bool) {
	for err != nil {
		if se, ok := err.(*storepg.StoreError); ok {
			return se, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// dropStaleQueueEntry deletes a queue row in its own transaction, used
// when the reconciliation transaction that would have deleted it
// already rolled back on the archive's duplicate-key check.
func dropStaleQueueEntry(ctx context.Context, pool *pgxpool.Pool, id uuid.UUID) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := storepg.DeleteQueueEntry(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
