package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/atcfeed/sessiond/internal/logger"
	"github.com/atcfeed/sessiond/internal/telemetry"
	"github.com/atcfeed/sessiond/pkg/config"
	"github.com/atcfeed/sessiond/pkg/fetcher"
	"github.com/atcfeed/sessiond/pkg/reconciler"
	storepg "github.com/atcfeed/sessiond/pkg/store/postgres"
	"github.com/atcfeed/sessiond/pkg/sweeper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fetcher, processor, and sweeper",
	Long: `Run sessiond's three background loops together: the fetcher polls
the upstream feed, the processor drains the queue into the session
tables, and the sweeper force-closes sessions orphaned by lost
snapshots.

Examples:
  # Run with the default config location
  sessiond serve

  # Run with a custom config file
  sessiond serve --config /etc/sessiond/config.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Duration("idle-poll", 2*time.Second, "how often the processor checks an empty queue")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	idlePoll, err := cmd.Flags().GetDuration("idle-poll")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "sessiond",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "sessiond",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	logger.Info("starting sessiond", "config_source", getConfigSource(GetConfigFile()))

	if err := storepg.RunMigrations(ctx, cfg.Database); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	store, err := storepg.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	logger.Info("acquiring single-writer advisory lock")
	lockConn, err := storepg.AcquireSingleWriterLock(ctx, store.Pool())
	if err != nil {
		return fmt.Errorf("failed to acquire single-writer lock: %w", err)
	}
	defer func() {
		if err := storepg.ReleaseSingleWriterLock(context.Background(), lockConn); err != nil {
			logger.Error("failed to release single-writer lock", "error", err)
		}
	}()
	logger.Info("single-writer advisory lock held, this instance is the active processor")

	f := fetcher.New(cfg.Fetch, store.Pool())
	if err := f.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed fetcher: %w", err)
	}
	r := reconciler.New(store.Pool())
	s := sweeper.New(cfg.Sweep, store.Pool())

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		logger.Info("metrics server listening", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics collection disabled")
	}

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return f.Run(gctx)
	})
	group.Go(func() error {
		return s.Run(gctx)
	})
	group.Go(func() error {
		return runProcessor(gctx, r, idlePoll)
	})
	if metricsServer != nil {
		group.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("sessiond running, press Ctrl+C to stop")

	select {
	case <-sigCh:
		logger.Info("shutdown signal received, stopping background loops")
		cancel()
	case <-gctx.Done():
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("background loop exited with error", "error", err)
		return err
	}

	logger.Info("sessiond stopped")
	return nil
}

// runProcessor drains the reconciler's queue until it is empty, then
// waits idlePoll before checking again. Ticking rather than blocking
// on a channel keeps it decoupled from the fetcher: either process can
// restart without losing queued work.
func runProcessor(ctx context.Context, r *reconciler.Reconciler, idlePoll time.Duration) error {
	for {
		processed, err := drainQueue(ctx, r)
		if err != nil && ctx.Err() == nil {
			logger.ErrorCtx(ctx, "processor: reconciliation failed", logger.Err(err))
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(idlePoll):
		}
	}
}

// drainQueue reconciles one queued snapshot. It returns processed=true
// when a row was found and handled (regardless of whether it was
// committed, dropped as malformed, or dropped as a duplicate), so the
// caller can immediately try the next row instead of waiting out the
// idle poll interval.
func drainQueue(ctx context.Context, r *reconciler.Reconciler) (processed bool, err error) {
	_, processed, err = r.ProcessOne(ctx)
	return processed, err
}
