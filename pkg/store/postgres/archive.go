package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/atcfeed/sessiond/pkg/codec"
)

// InsertArchive archives a processed snapshot. The unique constraint
// on updated_at is the archive's idempotency key: a retried
// transaction that re-inserts the same snapshot fails with
// ErrAlreadyExists rather than double-archiving.
func InsertArchive(ctx context.Context, q Querier, updatedAt time.Time, enc codec.Encoded) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO datafeed_archive (id, updated_at, payload_compressed, original_size_bytes, compression_algo)
		VALUES ($1, $2, $3, $4, $5)`,
		id, updatedAt, enc.Compressed, enc.OriginalSize, string(enc.Algo))
	return mapPgError(err, "insert_archive")
}

// NewestArchiveAge returns how long ago the newest archive row was
// processed, used by the `status` CLI command as a freshness signal.
func NewestArchiveAge(ctx context.Context, q Querier, now time.Time) (time.Duration, bool, error) {
	row := q.QueryRow(ctx, `SELECT processed_at FROM datafeed_archive ORDER BY processed_at DESC LIMIT 1`)
	var processedAt time.Time
	if err := row.Scan(&processedAt); err != nil {
		if IsNotFound(mapPgError(err, "newest_archive_age")) {
			return 0, false, nil
		}
		return 0, false, mapPgError(err, "newest_archive_age")
	}
	return now.Sub(processedAt), true, nil
}
