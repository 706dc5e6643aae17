package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is satisfied by both *pgxpool.Pool and pgx.Tx, so the
// queries in this package run identically whether they are issued
// standalone or as part of the reconciler's single per-snapshot
// transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// CallsignSession mirrors the callsign_sessions table.
type CallsignSession struct {
	ID        uuid.UUID
	Prefix    string
	Suffix    string
	StartTime time.Time
	EndTime   *time.Time
	Duration  *time.Duration
	LastSeen  time.Time
	IsActive  bool
}

// CallsignKey identifies a CallsignSession's partial-unique key.
type CallsignKey struct {
	Prefix string
	Suffix string
}

// PositionSession mirrors the position_sessions table.
type PositionSession struct {
	ID         uuid.UUID
	PositionID string
	StartTime  time.Time
	EndTime    *time.Time
	Duration   *time.Duration
	LastSeen   time.Time
	IsActive   bool
}

// ControllerSession mirrors the controller_sessions table.
type ControllerSession struct {
	ID                uuid.UUID
	CID               int32
	Name              string
	UserRating        int16
	RequestedRating   int16
	ConnectedCallsign string
	PrimaryPositionID string
	LoginTime         time.Time
	IsObserver        bool
	StartTime         time.Time
	EndTime           *time.Time
	Duration          *time.Duration
	LastSeen          time.Time
	IsActive          bool
	CallsignSessionID uuid.UUID
	PositionSessionID uuid.UUID
}

// QueueEntry mirrors one pending row in datafeed_queue.
type QueueEntry struct {
	ID        uuid.UUID
	UpdatedAt time.Time
	Payload   []byte
}

// ActivityCounts is the per-snapshot sample inserted into
// session_activity_stats.
type ActivityCounts struct {
	ObservedAt        time.Time
	ActiveControllers int
	ActiveCallsigns   int
	ActivePositions   int
}
