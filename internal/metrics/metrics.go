// Package metrics holds the Prometheus instruments for graph updates and
// retention sweeps.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "timegraph"

// Update statuses used as the "status" label.
const (
	StatusOK        = "ok"
	StatusUnchanged = "unchanged"
	StatusRejected  = "rejected"
	StatusFailed    = "failed"
)

// Metrics is the set of instruments registered by New.
type Metrics struct {
	// UpdatesTotal counts updates by mode (base, delta) and status.
	UpdatesTotal *prometheus.CounterVec

	// UpdateDuration measures Apply latency including all store I/O.
	UpdateDuration prometheus.Histogram

	// DeltaTriplesTotal counts triples written to /added and /removed graphs.
	// Labels: role (added, removed)
	DeltaTriplesTotal *prometheus.CounterVec

	// SweepsTotal counts retention sweeps by status (ok, failed).
	SweepsTotal *prometheus.CounterVec

	GraphsDroppedTotal prometheus.Counter
	SweepDuration      prometheus.Histogram

	// SweepsSkippedTotal counts scheduler ticks skipped because a sweep
	// was still running.
	SweepsSkippedTotal prometheus.Counter
}

// New registers every instrument with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UpdatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "Graph updates by mode and status",
			},
			[]string{"mode", "status"},
		),
		UpdateDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "update_duration_seconds",
				Help:      "Graph update latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		DeltaTriplesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delta_triples_total",
				Help:      "Triples written to delta graphs by role",
			},
			[]string{"role"},
		),
		SweepsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_total",
				Help:      "Retention sweeps by status",
			},
			[]string{"status"},
		),
		GraphsDroppedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "graphs_dropped_total",
				Help:      "Graphs dropped by retention sweeps",
			},
		),
		SweepDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sweep_duration_seconds",
				Help:      "Retention sweep duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 600},
			},
		),
		SweepsSkippedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sweeps_skipped_total",
				Help:      "Scheduled sweeps skipped because one was already running",
			},
		),
	}
}
