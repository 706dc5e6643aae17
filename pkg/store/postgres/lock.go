package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// singleWriterLockKey is the well-known pg_advisory_lock key held for
// the processor's lifetime, enforcing single-writer access to the
// session tables at the database level rather than relying on
// deployment hygiene.
const singleWriterLockKey int64 = 0x73657373_696f6e64 // "sessiond" as ASCII bytes

// AcquireSingleWriterLock takes a session-level Postgres advisory lock
// on a dedicated connection, blocking until it is available. The
// returned connection must be passed to ReleaseSingleWriterLock to
// unlock and release it back to the pool; holding it open for the
// caller's lifetime is what makes the lock exclusive across processes.
func AcquireSingleWriterLock(ctx context.Context, pool *pgxpool.Pool) (*pgxpool.Conn, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("storepg: acquire lock connection: %w", err)
	}
	if _, err := conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, singleWriterLockKey); err != nil {
		conn.Release()
		return nil, fmt.Errorf("storepg: pg_advisory_lock: %w", err)
	}
	return conn, nil
}

// ReleaseSingleWriterLock unlocks and releases a connection acquired by
// AcquireSingleWriterLock.
func ReleaseSingleWriterLock(ctx context.Context, conn *pgxpool.Conn) error {
	defer conn.Release()
	_, err := conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, singleWriterLockKey)
	if err != nil {
		return fmt.Errorf("storepg: pg_advisory_unlock: %w", err)
	}
	return nil
}
