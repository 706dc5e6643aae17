package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging. Use these keys
// consistently across all log statements for log aggregation and
// querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Pipeline & Component
	// ========================================================================
	KeyComponent = "component" // fetcher, processor, reconciler, sweeper

	// ========================================================================
	// Snapshot / Feed
	// ========================================================================
	KeySnapshotAt      = "snapshot_at"      // snapshot's updated_at
	KeyHighWaterMark   = "high_water_mark"  // fetcher's in-memory novelty cutoff
	KeyPayloadBytes    = "payload_bytes"    // raw payload size in bytes
	KeyCompressedBytes = "compressed_bytes" // compressed payload size in bytes
	KeyCompressionAlgo = "compression_algo" // codec algorithm tag

	// ========================================================================
	// Session keys
	// ========================================================================
	KeyControllerCID = "cid"           // controller CID
	KeyCallsign      = "callsign"      // full connected callsign
	KeyCallsignPair  = "callsign_pair" // prefix/suffix split callsign
	KeyPositionID    = "position_id"   // logical position identifier
	KeySessionID     = "session_id"    // session row ID

	// ========================================================================
	// Queue / Processing
	// ========================================================================
	KeyQueueDepth    = "queue_depth"    // pending queue rows
	KeyOpened        = "opened"        // sessions opened this reconciliation
	KeyClosed        = "closed"        // sessions closed this reconciliation
	KeyRefreshed     = "refreshed"     // sessions refreshed this reconciliation
	KeySkipped       = "skipped"       // entries skipped (duplicate key, unsplittable callsign)
	KeyActiveCount   = "active_count"  // active rows of a given kind after reconciliation

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Numeric/named error code
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts
)

// Component returns a slog.Attr for the emitting component
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// SnapshotAt returns a slog.Attr for a snapshot's updated_at
func SnapshotAt(t time.Time) slog.Attr {
	return slog.Time(KeySnapshotAt, t)
}

// HighWaterMark returns a slog.Attr for the fetcher's novelty cutoff
func HighWaterMark(t time.Time) slog.Attr {
	return slog.Time(KeyHighWaterMark, t)
}

// PayloadBytes returns a slog.Attr for raw payload size
func PayloadBytes(n int) slog.Attr {
	return slog.Int(KeyPayloadBytes, n)
}

// CompressedBytes returns a slog.Attr for compressed payload size
func CompressedBytes(n int) slog.Attr {
	return slog.Int(KeyCompressedBytes, n)
}

// CompressionAlgo returns a slog.Attr for the codec algorithm tag
func CompressionAlgo(algo string) slog.Attr {
	return slog.String(KeyCompressionAlgo, algo)
}

// ControllerCID returns a slog.Attr for a controller CID
func ControllerCID(cid int32) slog.Attr {
	return slog.Int(KeyControllerCID, int(cid))
}

// Callsign returns a slog.Attr for a full connected callsign
func Callsign(callsign string) slog.Attr {
	return slog.String(KeyCallsign, callsign)
}

// CallsignPair returns a slog.Attr for a split (prefix, suffix) pair
func CallsignPair(prefix, suffix string) slog.Attr {
	return slog.String(KeyCallsignPair, prefix+"_"+suffix)
}

// PositionID returns a slog.Attr for a logical position identifier
func PositionID(id string) slog.Attr {
	return slog.String(KeyPositionID, id)
}

// SessionID returns a slog.Attr for a session row ID
func SessionID(id string) slog.Attr {
	return slog.String(KeySessionID, id)
}

// QueueDepth returns a slog.Attr for pending queue row count
func QueueDepth(n int) slog.Attr {
	return slog.Int(KeyQueueDepth, n)
}

// Opened returns a slog.Attr for the number of sessions opened
func Opened(n int) slog.Attr {
	return slog.Int(KeyOpened, n)
}

// Closed returns a slog.Attr for the number of sessions closed
func Closed(n int) slog.Attr {
	return slog.Int(KeyClosed, n)
}

// Refreshed returns a slog.Attr for the number of sessions refreshed
func Refreshed(n int) slog.Attr {
	return slog.Int(KeyRefreshed, n)
}

// Skipped returns a slog.Attr for the number of entries skipped
func Skipped(n int) slog.Attr {
	return slog.Int(KeySkipped, n)
}

// ActiveCount returns a slog.Attr for an active-row count of a given kind
func ActiveCount(kind string, n int) slog.Attr {
	return slog.Int("active_"+kind, n)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a named error code
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}
