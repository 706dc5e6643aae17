// Package metrics exposes Prometheus counters/gauges/histograms for the
// three background loops (fetcher, processor, sweeper). Constructed
// directly with promauto rather than behind an interface+constructor
// indirection: this repo has exactly one metrics backend and one
// process topology, so a swappable-backend abstraction buys nothing
// here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchPolls counts fetch attempts by outcome (novel, stale,
	// error).
	FetchPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "fetcher",
		Name:      "polls_total",
		Help:      "Upstream feed poll attempts by outcome.",
	}, []string{"outcome"})

	// FetchHighWaterMark is the fetcher's in-memory novelty cutoff, as
	// a Unix timestamp.
	FetchHighWaterMark = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sessiond",
		Subsystem: "fetcher",
		Name:      "high_water_mark_timestamp_seconds",
		Help:      "Unix timestamp of the most recent snapshot seen by the fetcher.",
	})

	// QueueDepth is the number of pending datafeed_queue rows,
	// sampled by the fetcher after each enqueue.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sessiond",
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Pending rows in datafeed_queue.",
	})

	// ReconciliationsTotal counts processed snapshots by outcome
	// (committed, duplicate, dropped_malformed).
	ReconciliationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "reconciler",
		Name:      "reconciliations_total",
		Help:      "Reconciled snapshots by outcome.",
	}, []string{"outcome"})

	// ReconcileDuration observes wall-clock time per reconciliation
	// transaction.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sessiond",
		Subsystem: "reconciler",
		Name:      "duration_seconds",
		Help:      "Time spent in the per-snapshot reconciliation transaction.",
		Buckets:   prometheus.DefBuckets,
	})

	// ActiveSessions is a point-in-time gauge of active rows per
	// table, set after each reconciliation from the present-sets.
	ActiveSessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sessiond",
		Subsystem: "reconciler",
		Name:      "active_sessions",
		Help:      "Active session rows by table, as of the last reconciled snapshot.",
	}, []string{"table"})

	// SweepsTotal counts sweep passes.
	SweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "sweeper",
		Name:      "sweeps_total",
		Help:      "Sweep passes executed.",
	})

	// SweptSessions counts sessions closed by the sweeper, by table.
	SweptSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sessiond",
		Subsystem: "sweeper",
		Name:      "swept_sessions_total",
		Help:      "Sessions force-closed by the sweeper, by table.",
	}, []string{"table"})
)
