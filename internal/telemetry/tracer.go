package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for pipeline spans. These follow OpenTelemetry semantic
// convention style (dot-separated namespaces) but name concepts specific
// to the ingestion pipeline rather than a generic wire protocol.
const (
	AttrSnapshotAt       = "feed.snapshot_at"
	AttrQueueDepth       = "feed.queue_depth"
	AttrControllerCID    = "session.cid"
	AttrCallsignPair     = "session.callsign_pair"
	AttrPositionID       = "session.position_id"
	AttrOpenedCount      = "reconcile.opened"
	AttrClosedCount      = "reconcile.closed"
	AttrRefreshedCount   = "reconcile.refreshed"
	AttrSkippedCount     = "reconcile.skipped"
	AttrCompressionAlgo  = "codec.algo"
	AttrPayloadBytes     = "codec.original_bytes"
	AttrCompressedBytes  = "codec.compressed_bytes"
	AttrUpstreamURL      = "fetch.url"
	AttrHTTPStatus       = "fetch.status_code"
)

// Span names for the pipeline's components.
const (
	SpanFetchPoll         = "fetcher.poll"
	SpanFetchParse        = "fetcher.parse"
	SpanProcessorDrain    = "processor.drain"
	SpanReconcile         = "reconciler.reconcile"
	SpanReconcileClose    = "reconciler.close_disappearances"
	SpanReconcileUpsert   = "reconciler.upsert_sessions"
	SpanReconcileArchive  = "reconciler.archive"
	SpanSweep             = "sweeper.sweep"
)

// SnapshotAt returns an attribute for a snapshot's updated_at
func SnapshotAt(t time.Time) attribute.KeyValue {
	return attribute.String(AttrSnapshotAt, t.Format(time.RFC3339Nano))
}

// QueueDepth returns an attribute for pending queue row count
func QueueDepth(n int) attribute.KeyValue {
	return attribute.Int(AttrQueueDepth, n)
}

// ControllerCID returns an attribute for a controller CID
func ControllerCID(cid int32) attribute.KeyValue {
	return attribute.Int64(AttrControllerCID, int64(cid))
}

// CallsignPair returns an attribute for a split callsign pair
func CallsignPair(prefix, suffix string) attribute.KeyValue {
	return attribute.String(AttrCallsignPair, prefix+"_"+suffix)
}

// PositionID returns an attribute for a logical position id
func PositionID(id string) attribute.KeyValue {
	return attribute.String(AttrPositionID, id)
}

// CompressionAlgo returns an attribute for the codec algorithm tag
func CompressionAlgo(algo string) attribute.KeyValue {
	return attribute.String(AttrCompressionAlgo, algo)
}

// PayloadBytes returns an attribute for raw payload size
func PayloadBytes(n int) attribute.KeyValue {
	return attribute.Int(AttrPayloadBytes, n)
}

// CompressedBytes returns an attribute for compressed payload size
func CompressedBytes(n int) attribute.KeyValue {
	return attribute.Int(AttrCompressedBytes, n)
}

// UpstreamURL returns an attribute for the fetch target URL
func UpstreamURL(url string) attribute.KeyValue {
	return attribute.String(AttrUpstreamURL, url)
}

// HTTPStatus returns an attribute for an upstream HTTP response status
func HTTPStatus(code int) attribute.KeyValue {
	return attribute.Int(AttrHTTPStatus, code)
}

// StartFetchSpan starts a span for one fetcher poll iteration.
func StartFetchSpan(ctx context.Context, url string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanFetchPoll, trace.WithAttributes(UpstreamURL(url)))
}

// StartReconcileSpan starts a span for one snapshot's reconciliation.
func StartReconcileSpan(ctx context.Context, snapshotAt time.Time) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanReconcile, trace.WithAttributes(SnapshotAt(snapshotAt)))
}

// StartSweepSpan starts a span for one sweep pass.
func StartSweepSpan(ctx context.Context) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSweep)
}
