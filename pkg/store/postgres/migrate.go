package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/atcfeed/sessiond/internal/logger"
	"github.com/atcfeed/sessiond/pkg/config"
	"github.com/atcfeed/sessiond/pkg/store/postgres/migrations"
)

// RunMigrations applies any pending schema migrations and returns.
// golang-migrate takes a Postgres advisory lock for the duration of the
// run, so it is safe to invoke from multiple instances concurrently at
// startup; only one actually runs the DDL.
func RunMigrations(ctx context.Context, cfg config.DatabaseConfig) error {
	log := logger.With("component", "migrate")

	db, err := sql.Open("pgx", cfg.DSN())
	if err != nil {
		return fmt.Errorf("migrate: open: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("migrate: ping: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: cfg.MigrationsTable,
		DatabaseName:    cfg.Database,
	})
	if err != nil {
		return fmt.Errorf("migrate: driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("migrate: source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate: instance: %w", err)
	}

	log.Info("applying migrations")
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate: up: %w", err)
	} else if err == migrate.ErrNoChange {
		log.Info("schema already up to date")
	} else {
		log.Info("migrations applied")
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("migrate: version: %w", err)
	}
	if err != migrate.ErrNilVersion {
		log.Info("schema version", "version", version, "dirty", dirty)
		if dirty {
			log.Warn("schema is in a dirty state, manual intervention required")
		}
	}

	return nil
}
