package metrics

import "github.com/prometheus/client_golang/prometheus"

// Consumer message outcomes.
const (
	ConsumerHandled     = "handled"
	ConsumerDuplicate   = "duplicate"
	ConsumerMalformed   = "malformed"
	ConsumerUnsupported = "unsupported"
	ConsumerFailed      = "failed"
)

// ConsumerMetrics counts Pub/Sub deliveries per consumer.
type ConsumerMetrics struct {
	messages *prometheus.CounterVec
}

func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	m := &ConsumerMetrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consumer_messages_total",
			Help:      "Event deliveries seen by a consumer, by outcome.",
		}, []string{"consumer", "result"}),
	}
	reg.MustRegister(m.messages)
	return m
}

func (m *ConsumerMetrics) Inc(consumer, result string) {
	if m == nil || m.messages == nil {
		return
	}
	m.messages.WithLabelValues(normalizeLabel(consumer), normalizeLabel(result)).Inc()
}
