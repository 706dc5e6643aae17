package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/atcfeed/sessiond/pkg/config"
	storepg "github.com/atcfeed/sessiond/pkg/store/postgres"
)

var sharedDBConfig config.DatabaseConfig

func TestMain(m *testing.M) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sessiond_test"),
		postgres.WithUsername("sessiond_test"),
		postgres.WithPassword("sessiond_test"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		os.Exit(1)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container host: %v\n", err)
		os.Exit(1)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to get container port: %v\n", err)
		os.Exit(1)
	}

	sharedDBConfig = config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		Database:        "sessiond_test",
		User:            "sessiond_test",
		Password:        "sessiond_test",
		SSLMode:         "disable",
		MaxConns:        5,
		MinConns:        1,
		ConnectTimeout:  5 * time.Second,
		MigrationsTable: "schema_migrations",
	}

	if err := storepg.RunMigrations(ctx, sharedDBConfig); err != nil {
		_ = container.Terminate(ctx)
		fmt.Fprintf(os.Stderr, "failed to apply migrations: %v\n", err)
		os.Exit(1)
	}

	exitCode := m.Run()

	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate container: %v\n", err)
	}
	os.Exit(exitCode)
}

func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, sharedDBConfig.DSN())
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `TRUNCATE TABLE datafeed_queue, datafeed_archive`)
	require.NoError(t, err)

	t.Cleanup(pool.Close)
	return pool
}

func testFetchConfig(url string) config.FetchConfig {
	return config.FetchConfig{
		UpstreamURL:    url,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}
}

func TestFetcherEnqueuesNovelSnapshot(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	body := `{"general":{"update_timestamp":"2026-01-01T00:00:00Z"},"controllers":[]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(testFetchConfig(srv.URL), pool)
	require.NoError(t, f.Seed(ctx))
	require.NoError(t, f.pollOnce(ctx))

	depth, err := storepg.QueueDepth(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestFetcherDiscardsNonNovelSnapshot(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	body := `{"general":{"update_timestamp":"2026-01-01T00:00:00Z"},"controllers":[]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(testFetchConfig(srv.URL), pool)
	require.NoError(t, f.Seed(ctx))
	require.NoError(t, f.pollOnce(ctx))
	require.NoError(t, f.pollOnce(ctx)) // same updated_at, second poll

	depth, err := storepg.QueueDepth(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestFetcherRetriesOn5xxThenSucceeds(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	attempts := 0
	body := `{"general":{"update_timestamp":"2026-01-02T00:00:00Z"},"controllers":[]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	f := New(testFetchConfig(srv.URL), pool)
	require.NoError(t, f.Seed(ctx))
	require.NoError(t, f.pollOnce(ctx))

	assert.GreaterOrEqual(t, attempts, 2)
	depth, err := storepg.QueueDepth(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestFetcherPermanentErrorOnBadStatus(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(testFetchConfig(srv.URL), pool)
	require.NoError(t, f.Seed(ctx))
	err := f.pollOnce(ctx)
	assert.Error(t, err)

	depth, err2 := storepg.QueueDepth(ctx, pool)
	require.NoError(t, err2)
	assert.Equal(t, 0, depth)
}
