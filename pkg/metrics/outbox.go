package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay delivery outcomes.
const (
	RelayPublished = "published"
	RelayRetried   = "retried"
	RelayParked    = "parked"
)

// OutboxMetrics instruments the outbox relay.
type OutboxMetrics struct {
	events *prometheus.CounterVec
	batch  prometheus.Histogram
	lag    prometheus.Histogram
}

// NewOutboxMetrics registers the relay metrics on reg. A nil registerer yields
// a no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_total",
			Help:      "Outbox rows handled by the relay, by outcome.",
		}, []string{"result"}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_batch_duration_seconds",
			Help:      "Time spent draining one outbox batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_publish_lag_seconds",
			Help:      "Delay between an event being committed and reaching Pub/Sub.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300, 900},
		}),
	}
	reg.MustRegister(m.events, m.batch, m.lag)
	return m
}

func (m *OutboxMetrics) IncEvent(result string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *OutboxMetrics) ObserveBatch(d time.Duration) {
	if m == nil || m.batch == nil {
		return
	}
	m.batch.Observe(d.Seconds())
}

// ObserveLag records how long a row waited in the outbox before publish.
func (m *OutboxMetrics) ObserveLag(d time.Duration) {
	if m == nil || m.lag == nil || d < 0 {
		return
	}
	m.lag.Observe(d.Seconds())
}
