package postgres

import (
	"context"
	"time"
)

// SweepResult reports how many rows of each kind the sweep closed.
type SweepResult struct {
	ClosedControllers int64
	ClosedCallsigns   int64
	ClosedPositions   int64
}

// Sweep closes every active session whose last_seen predates the
// threshold (now - grace), using each row's own last_seen as the new
// end_time rather than now. Selecting only is_active rows and guarding
// on last_seen makes repeated sweeps idempotent and safe to run
// concurrently with the reconciler's transaction: a row refreshed
// after the sweep's snapshot of "now" simply won't match.
func Sweep(ctx context.Context, q Querier, threshold time.Time) (SweepResult, error) {
	var res SweepResult

	tag, err := q.Exec(ctx, `
		UPDATE controller_sessions
		SET end_time = last_seen, duration = last_seen - start_time, is_active = false
		WHERE is_active AND last_seen < $1`, threshold)
	if err != nil {
		return res, mapPgError(err, "sweep_controllers")
	}
	res.ClosedControllers = tag.RowsAffected()

	tag, err = q.Exec(ctx, `
		UPDATE callsign_sessions
		SET end_time = last_seen, duration = last_seen - start_time, is_active = false
		WHERE is_active AND last_seen < $1`, threshold)
	if err != nil {
		return res, mapPgError(err, "sweep_callsigns")
	}
	res.ClosedCallsigns = tag.RowsAffected()

	tag, err = q.Exec(ctx, `
		UPDATE position_sessions
		SET end_time = last_seen, duration = last_seen - start_time, is_active = false
		WHERE is_active AND last_seen < $1`, threshold)
	if err != nil {
		return res, mapPgError(err, "sweep_positions")
	}
	res.ClosedPositions = tag.RowsAffected()

	return res, nil
}
