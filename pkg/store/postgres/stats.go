package postgres

import (
	"context"
)

// InsertActivityStats samples the present-sets computed during
// reconciliation: ON CONFLICT DO NOTHING on observed_at makes a
// retried reconciliation harmless, matching the archive's idempotency
// story.
func InsertActivityStats(ctx context.Context, q Querier, c ActivityCounts) error {
	_, err := q.Exec(ctx, `
		INSERT INTO session_activity_stats (observed_at, active_controllers, active_callsigns, active_positions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (observed_at) DO NOTHING`,
		c.ObservedAt, c.ActiveControllers, c.ActiveCallsigns, c.ActivePositions)
	return mapPgError(err, "insert_activity_stats")
}

// LatestActivityStats returns the most recently observed stats row,
// used by the `status` CLI command.
func LatestActivityStats(ctx context.Context, q Querier) (ActivityCounts, bool, error) {
	row := q.QueryRow(ctx, `
		SELECT observed_at, active_controllers, active_callsigns, active_positions
		FROM session_activity_stats ORDER BY observed_at DESC LIMIT 1`)

	var c ActivityCounts
	if err := row.Scan(&c.ObservedAt, &c.ActiveControllers, &c.ActiveCallsigns, &c.ActivePositions); err != nil {
		if IsNotFound(mapPgError(err, "latest_activity_stats")) {
			return ActivityCounts{}, false, nil
		}
		return ActivityCounts{}, false, mapPgError(err, "latest_activity_stats")
	}
	return c, true, nil
}
