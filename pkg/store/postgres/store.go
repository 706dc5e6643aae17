// Package postgres is the sole persistence layer for the ingestion
// pipeline: the three session tables, the datafeed queue and archive,
// and the activity-stats table. All access is raw SQL through pgx/v5;
// there is no ORM.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atcfeed/sessiond/internal/logger"
	"github.com/atcfeed/sessiond/pkg/config"
)

// Store wraps a pgx connection pool shared by the queue, the
// reconciler, the activity sampler, and the sweeper.
type Store struct {
	pool *pgxpool.Pool
}

// Open creates a connection pool from cfg and verifies connectivity.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("storepg: parse dsn: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	if cfg.QueryTimeout > 0 {
		poolConfig.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%dms", cfg.QueryTimeout.Milliseconds())
	}

	log := logger.With("component", "storepg")
	log.Info("creating postgres connection pool", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database, "max_conns", cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("storepg: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storepg: ping: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool exposes the underlying pgx pool for components, such as the
// fetcher, reconciler, and sweeper, that need it directly.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}
