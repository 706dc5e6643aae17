package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context for one snapshot's
// pass through the pipeline.
type LogContext struct {
	TraceID       string    // OpenTelemetry trace ID
	SpanID        string    // OpenTelemetry span ID
	Component     string    // fetcher, processor, reconciler, sweeper
	SnapshotAt    time.Time // snapshot's updated_at
	ControllerCID int32     // controller CID, when scoped to one entry
	StartTime     time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given component
func NewLogContext(component string) *LogContext {
	return &LogContext{
		Component: component,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:       lc.TraceID,
		SpanID:        lc.SpanID,
		Component:     lc.Component,
		SnapshotAt:    lc.SnapshotAt,
		ControllerCID: lc.ControllerCID,
		StartTime:     lc.StartTime,
	}
}

// WithSnapshot returns a copy with the snapshot time set
func (lc *LogContext) WithSnapshot(t time.Time) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SnapshotAt = t
	}
	return clone
}

// WithControllerCID returns a copy with the controller CID set
func (lc *LogContext) WithControllerCID(cid int32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ControllerCID = cid
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
