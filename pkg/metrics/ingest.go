package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Ingest outcomes.
const (
	OutcomeStored    = "stored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// IngestMetrics records event ingestion results.
type IngestMetrics struct {
	duration *prometheus.HistogramVec
	messages *prometheus.CounterVec
}

// NewIngestMetrics registers the ingest metrics on the provided registerer.
func NewIngestMetrics(reg prometheus.Registerer) *IngestMetrics {
	if reg == nil {
		return &IngestMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ingest_duration_seconds",
		Help:    "Time spent handling one event message.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_messages_total",
		Help: "Event messages handled by outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(duration, messages)
	return &IngestMetrics{duration: duration, messages: messages}
}

// Observe records the outcome and duration for one message.
func (m *IngestMetrics) Observe(eventType, outcome string, d time.Duration) {
	if m == nil || m.duration == nil || m.messages == nil {
		return
	}
	eventType = normalizeLabel(eventType)
	m.duration.WithLabelValues(eventType).Observe(d.Seconds())
	m.messages.WithLabelValues(eventType, normalizeLabel(outcome)).Inc()
}
