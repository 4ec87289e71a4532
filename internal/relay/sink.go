package relay

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/outbox"
	"github.com/persiashop/storefront-backend/pkg/outbox/registry"
)

// Sink delivers one message and blocks until the broker acknowledges it,
// returning the broker's message id.
type Sink interface {
	Send(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

// TopicSource hands out publishers by topic name; *pubsub.Client satisfies it.
type TopicSource interface {
	Publisher(name string) *gcppubsub.Publisher
}

// PubSubSink keeps one publisher per topic for the life of the process.
type PubSubSink struct {
	src    TopicSource
	mu     sync.Mutex
	topics map[string]*gcppubsub.Publisher
}

func NewPubSubSink(src TopicSource) *PubSubSink {
	return &PubSubSink{src: src, topics: make(map[string]*gcppubsub.Publisher)}
}

func (s *PubSubSink) Send(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	pub := s.publisher(topic)
	if pub == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}
	return pub.Publish(ctx, msg).Get(ctx)
}

func (s *PubSubSink) publisher(topic string) *gcppubsub.Publisher {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pub, ok := s.topics[topic]; ok {
		return pub
	}
	if s.src == nil {
		return nil
	}
	pub := s.src.Publisher(topic)
	if pub != nil {
		s.topics[topic] = pub
	}
	return pub
}

// Stop flushes and releases every publisher handed out so far.
func (s *PubSubSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for topic, pub := range s.topics {
		pub.Stop()
		delete(s.topics, topic)
	}
}

// buildMessage carries the stored envelope verbatim; attributes let consumers
// route and dedupe without decoding the body.
func buildMessage(row models.OutboxEvent, env outbox.PayloadEnvelope) *gcppubsub.Message {
	eventID := env.EventID
	if eventID == "" {
		eventID = row.ID.String()
	}
	version := env.Version
	if version <= 0 {
		version = 1
	}
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID,
			"version":        strconv.Itoa(version),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}
