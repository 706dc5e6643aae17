package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueClaimDelete(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, Enqueue(ctx, pool, t0, []byte(`{"a":1}`)))

	depth, err := QueueDepth(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	entry, err := ClaimOldest(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, t0, entry.UpdatedAt.UTC())
	assert.JSONEq(t, `{"a":1}`, string(entry.Payload))

	require.NoError(t, DeleteQueueEntry(ctx, tx, entry.ID))
	require.NoError(t, tx.Commit(ctx))

	depth, err = QueueDepth(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)
}

func TestQueueClaimOldestEmpty(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	_, err := ClaimOldest(ctx, pool)
	assert.True(t, IsNotFound(err))
}

func TestHighWaterMarkAcrossQueueAndArchive(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()

	t0 := time.Now().UTC().Truncate(time.Millisecond)
	t1 := t0.Add(time.Minute)

	require.NoError(t, Enqueue(ctx, pool, t0, []byte(`{}`)))

	hw, err := HighWaterMark(ctx, pool)
	require.NoError(t, err)
	assert.WithinDuration(t, t0, hw, time.Second)

	require.NoError(t, InsertArchive(ctx, pool, t1, encodedFixture(t)))

	hw, err = HighWaterMark(ctx, pool)
	require.NoError(t, err)
	assert.WithinDuration(t, t1, hw, time.Second)
}
