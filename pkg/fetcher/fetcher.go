// Package fetcher polls the upstream VATSIM-style datafeed on a fixed
// cadence, detects novel snapshots, and enqueues them for the
// processor.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atcfeed/sessiond/internal/logger"
	"github.com/atcfeed/sessiond/internal/telemetry"
	"github.com/atcfeed/sessiond/pkg/config"
	"github.com/atcfeed/sessiond/pkg/feed"
	"github.com/atcfeed/sessiond/pkg/metrics"
	storepg "github.com/atcfeed/sessiond/pkg/store/postgres"
)

// Fetcher polls cfg.UpstreamURL and enqueues novel snapshots into the
// datafeed queue.
type Fetcher struct {
	cfg        config.FetchConfig
	pool       *pgxpool.Pool
	httpClient *http.Client

	// highWater is the process-wide, advisory novelty cutoff: seeded
	// from the database at startup, mutated only by this fetch loop,
	// never shared with another writer.
	highWater atomic.Int64 // unix nanoseconds
}

// New builds a Fetcher. Call Seed before Run to initialize the
// high-water mark from existing queue/archive rows.
func New(cfg config.FetchConfig, pool *pgxpool.Pool) *Fetcher {
	return &Fetcher{
		cfg:        cfg,
		pool:       pool,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Seed initializes the in-memory high-water mark from
// max(updated_at) across the queue and archive tables.
func (f *Fetcher) Seed(ctx context.Context) error {
	hw, err := storepg.HighWaterMark(ctx, f.pool)
	if err != nil {
		return fmt.Errorf("fetcher: seed high-water mark: %w", err)
	}
	f.setHighWater(hw)
	logger.Info("fetcher seeded", "high_water_mark", hw)
	return nil
}

func (f *Fetcher) setHighWater(t time.Time) {
	f.highWater.Store(t.UnixNano())
	metrics.FetchHighWaterMark.Set(float64(t.Unix()))
}

func (f *Fetcher) getHighWater() time.Time {
	return time.Unix(0, f.highWater.Load()).UTC()
}

// Run polls on cfg.PollInterval until ctx is cancelled. Transient
// errors (network, upstream 5xx) are retried with capped exponential
// backoff within the tick; a fingerprint (parse) failure or a non-200,
// non-5xx status ends the tick without a retry. The loop itself never
// terminates on either.
func (f *Fetcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := f.pollOnce(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorCtx(ctx, "poll exhausted retries, will retry next tick", logger.Err(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// pollOnce performs one poll-and-enqueue cycle with bounded retries.
func (f *Fetcher) pollOnce(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.cfg.InitialBackoff
	bo.MaxInterval = f.cfg.MaxBackoff
	boWithCtx := backoff.WithContext(bo, ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := f.fetchAndEnqueue(ctx)
		if err != nil {
			logger.WarnCtx(ctx, "poll attempt failed", logger.Attempt(attempt), logger.Err(err))
		}
		return err
	}

	return backoff.Retry(operation, backoff.WithMaxRetries(boWithCtx, uint64(f.cfg.MaxRetries)))
}

func (f *Fetcher) fetchAndEnqueue(ctx context.Context) error {
	ctx, span := telemetry.StartFetchSpan(ctx, f.cfg.UpstreamURL)
	defer span.End()

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, f.cfg.UpstreamURL, nil)
	if err != nil {
		return fmt.Errorf("fetcher: build request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		metrics.FetchPolls.WithLabelValues("error").Inc()
		return fmt.Errorf("fetcher: http get: %w", err)
	}
	defer resp.Body.Close()

	telemetry.SetAttributes(ctx, telemetry.HTTPStatus(resp.StatusCode))

	if resp.StatusCode >= 500 {
		metrics.FetchPolls.WithLabelValues("error").Inc()
		return fmt.Errorf("fetcher: upstream returned %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		// Non-5xx, non-200: treated as a non-retryable parse/schema
		// problem rather than a transient fault.
		metrics.FetchPolls.WithLabelValues("error").Inc()
		return backoff.Permanent(fmt.Errorf("fetcher: unexpected status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		metrics.FetchPolls.WithLabelValues("error").Inc()
		return fmt.Errorf("fetcher: read body: %w", err)
	}

	updatedAt, err := feed.Fingerprint(body)
	if err != nil {
		metrics.FetchPolls.WithLabelValues("error").Inc()
		return backoff.Permanent(fmt.Errorf("fetcher: fingerprint: %w", err))
	}

	highWater := f.getHighWater()
	if !updatedAt.After(highWater) {
		metrics.FetchPolls.WithLabelValues("stale").Inc()
		logger.DebugCtx(ctx, "discarding non-novel snapshot", logger.SnapshotAt(updatedAt), logger.HighWaterMark(highWater))
		return nil
	}

	if err := storepg.Enqueue(ctx, f.pool, updatedAt, bytes.Clone(body)); err != nil {
		metrics.FetchPolls.WithLabelValues("error").Inc()
		return fmt.Errorf("fetcher: enqueue: %w", err)
	}

	f.setHighWater(updatedAt)
	metrics.FetchPolls.WithLabelValues("novel").Inc()

	depth, err := storepg.QueueDepth(ctx, f.pool)
	if err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}

	logger.InfoCtx(ctx, "enqueued novel snapshot", logger.SnapshotAt(updatedAt), logger.PayloadBytes(len(body)))
	return nil
}
