// Package metrics instruments the sync coordinator with Prometheus
// collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "featureplus"
	subsystem = "sync"
)

// Metrics holds the coordinator's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	submitted  *prometheus.CounterVec
	committed  *prometheus.CounterVec
	rolledBack *prometheus.CounterVec
	rejected   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	pending    prometheus.Gauge
	rekeys     prometheus.Counter
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to expose them process-wide.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		submitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ops_submitted_total",
			Help:      "Mutations accepted for dispatch, by entity kind and operation.",
		}, []string{"kind", "op"}),
		committed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ops_committed_total",
			Help:      "Mutations confirmed by the remote.",
		}, []string{"kind", "op"}),
		rolledBack: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ops_rolled_back_total",
			Help:      "Mutations undone after a remote failure, by error code.",
		}, []string{"kind", "op", "code"}),
		rejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "ops_rejected_total",
			Help:      "Mutations refused locally before any optimistic change.",
		}, []string{"kind", "op", "code"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "remote_call_duration_seconds",
			Help:      "Remote round-trip time per operation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"op"}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "pending_ops",
			Help:      "Mutations submitted but not yet resolved.",
		}),
		rekeys: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rekeys_total",
			Help:      "Temporary ids replaced by server ids.",
		}),
	}
}

// Submitted records an accepted mutation.
func (m *Metrics) Submitted(kind, op string) {
	if m == nil {
		return
	}
	m.submitted.WithLabelValues(kind, op).Inc()
	m.pending.Inc()
}

// Committed records a confirmed mutation.
func (m *Metrics) Committed(kind, op string) {
	if m == nil {
		return
	}
	m.committed.WithLabelValues(kind, op).Inc()
	m.pending.Dec()
}

// RolledBack records an undone mutation.
func (m *Metrics) RolledBack(kind, op, code string) {
	if m == nil {
		return
	}
	m.rolledBack.WithLabelValues(kind, op, code).Inc()
	m.pending.Dec()
}

// Rejected records a local refusal.
func (m *Metrics) Rejected(kind, op, code string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(kind, op, code).Inc()
}

// ObserveCall records one remote round-trip.
func (m *Metrics) ObserveCall(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// Rekeyed records a temporary id reconciliation.
func (m *Metrics) Rekeyed() {
	if m == nil {
		return
	}
	m.rekeys.Inc()
}
