package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SnapshotMetrics records metrics facade activity.
type SnapshotMetrics struct {
	duration *prometheus.HistogramVec
	degraded *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  prometheus.Histogram
}

// NewSnapshotMetrics registers the snapshot metrics on the provided registerer.
func NewSnapshotMetrics(reg prometheus.Registerer) *SnapshotMetrics {
	if reg == nil {
		return &SnapshotMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "snapshot_duration_seconds",
		Help:    "Duration of metrics snapshot computation in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"domain"})
	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_degraded_fields_total",
		Help: "Optional snapshot statistics replaced by a default value.",
	}, []string{"domain", "field"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "snapshot_failures_total",
		Help: "Snapshots that failed on a mandatory statistic.",
	}, []string{"domain"})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chat_response_latency_seconds",
		Help:    "Paired chat reply latency observed while building snapshots.",
		Buckets: []float64{30, 60, 300, 900, 1800, 3600, 7200, 21600, 86400},
	})
	reg.MustRegister(duration, degraded, failures, latency)
	return &SnapshotMetrics{
		duration: duration,
		degraded: degraded,
		failures: failures,
		latency:  latency,
	}
}

// ObserveDuration records how long a snapshot for domain took.
func (m *SnapshotMetrics) ObserveDuration(domain string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(domain)).Observe(d.Seconds())
}

// IncDegraded counts a defaulted optional field.
func (m *SnapshotMetrics) IncDegraded(domain, field string) {
	if m == nil || m.degraded == nil {
		return
	}
	m.degraded.WithLabelValues(normalizeLabel(domain), normalizeLabel(field)).Inc()
}

// IncFailure counts a failed snapshot.
func (m *SnapshotMetrics) IncFailure(domain string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(domain)).Inc()
}

// ObserveResponseLatency records one paired reply latency.
func (m *SnapshotMetrics) ObserveResponseLatency(d time.Duration) {
	if m == nil || m.latency == nil {
		return
	}
	m.latency.Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
