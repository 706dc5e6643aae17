// Package sweeper closes sessions stranded by lost snapshots: if a
// session's last_seen lags more than a grace window, it is closed with
// end_time set to its own last_seen rather than the sweep time.
package sweeper

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atcfeed/sessiond/internal/logger"
	"github.com/atcfeed/sessiond/internal/telemetry"
	"github.com/atcfeed/sessiond/pkg/config"
	"github.com/atcfeed/sessiond/pkg/metrics"
	storepg "github.com/atcfeed/sessiond/pkg/store/postgres"
)

// Sweeper runs periodic sweep passes over pool.
type Sweeper struct {
	cfg  config.SweepConfig
	pool *pgxpool.Pool
}

// New builds a Sweeper.
func New(cfg config.SweepConfig, pool *pgxpool.Pool) *Sweeper {
	return &Sweeper{cfg: cfg, pool: pool}
}

// Run executes sweep passes on cfg.Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorCtx(ctx, "sweep pass failed", logger.Err(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SweepOnce runs a single sweep pass. Only is_active rows with
// last_seen older than the grace threshold are touched, which makes
// repeated and concurrent sweeps idempotent.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	ctx, span := telemetry.StartSweepSpan(ctx)
	defer span.End()

	threshold := time.Now().UTC().Add(-s.cfg.StaleAfter)

	result, err := storepg.Sweep(ctx, s.pool, threshold)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	metrics.SweepsTotal.Inc()
	metrics.SweptSessions.WithLabelValues("controller").Add(float64(result.ClosedControllers))
	metrics.SweptSessions.WithLabelValues("callsign").Add(float64(result.ClosedCallsigns))
	metrics.SweptSessions.WithLabelValues("position").Add(float64(result.ClosedPositions))

	if result.ClosedControllers+result.ClosedCallsigns+result.ClosedPositions > 0 {
		logger.InfoCtx(ctx, "sweep closed stale sessions",
			"closed_controllers", result.ClosedControllers,
			"closed_callsigns", result.ClosedCallsigns,
			"closed_positions", result.ClosedPositions,
			"threshold", threshold)
	}

	return nil
}
