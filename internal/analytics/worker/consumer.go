// Package worker feeds the analytics subscription into the BigQuery router.
package worker

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/persiashop/storefront-backend/internal/analytics/router"
	"github.com/persiashop/storefront-backend/internal/analytics/types"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/metrics"
)

const consumerName = "analytics"

// Source is a Pub/Sub subscription; *pubsub.Subscriber satisfies it.
type Source interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

// Dedupe remembers which event ids this consumer already handled.
type Dedupe interface {
	CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Delete(ctx context.Context, consumer string, eventID uuid.UUID) error
}

type ConsumerParams struct {
	Source  Source
	Handler Handler
	Dedupe  Dedupe
	Metrics *metrics.ConsumerMetrics
	Logger  *logger.Logger
}

// Consumer acks malformed and unsupported events so they are not redelivered
// forever, and nacks handler failures so Pub/Sub retries them.
type Consumer struct {
	source  Source
	handler Handler
	dedupe  Dedupe
	metrics *metrics.ConsumerMetrics
	logg    *logger.Logger
}

func NewConsumer(p ConsumerParams) (*Consumer, error) {
	switch {
	case p.Source == nil:
		return nil, errors.New("subscription is required")
	case p.Handler == nil:
		return nil, errors.New("handler is required")
	case p.Dedupe == nil:
		return nil, errors.New("dedupe store is required")
	case p.Logger == nil:
		return nil, errors.New("logger is required")
	}
	return &Consumer{
		source:  p.Source,
		handler: p.Handler,
		dedupe:  p.Dedupe,
		metrics: p.Metrics,
		logg:    p.Logger,
	}, nil
}

// Run blocks receiving messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.source.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if c.consume(ctx, msg.ID, msg.Data, msg.Attributes) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// consume reports whether the message should be acked.
func (c *Consumer) consume(ctx context.Context, messageID string, body []byte, attrs map[string]string) bool {
	ctx = c.logg.WithField(ctx, "message_id", messageID)

	env, err := types.FromMessage(body, attrs)
	if err != nil {
		c.record(ctx, metrics.ConsumerMalformed, "dropping malformed message", err)
		return true
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"event_id":       env.EventID,
		"event_type":     env.EventType,
		"aggregate_type": env.AggregateType,
		"aggregate_id":   env.AggregateID,
	})

	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		c.record(ctx, metrics.ConsumerMalformed, "dropping message with invalid event id", err)
		return true
	}

	seen, err := c.dedupe.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		c.record(ctx, metrics.ConsumerFailed, "dedupe check failed", err)
		return false
	}
	if seen {
		c.record(ctx, metrics.ConsumerDuplicate, "event already handled", nil)
		return true
	}

	if err := c.handler.Handle(ctx, env); err != nil {
		if errors.Is(err, router.ErrUnsupportedEventType) {
			c.record(ctx, metrics.ConsumerUnsupported, "dropping unsupported event", err)
			return true
		}
		if delErr := c.dedupe.Delete(ctx, consumerName, eventID); delErr != nil {
			c.logg.Error(ctx, "failed to clear dedupe marker", delErr)
		}
		c.record(ctx, metrics.ConsumerFailed, "analytics handler failed", err)
		return false
	}

	c.record(ctx, metrics.ConsumerHandled, "analytics event stored", nil)
	return true
}

func (c *Consumer) record(ctx context.Context, result, msg string, err error) {
	c.metrics.Inc(consumerName, result)
	switch {
	case result == metrics.ConsumerFailed:
		c.logg.Error(ctx, msg, err)
	case err != nil:
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), msg)
	default:
		c.logg.Info(ctx, msg)
	}
}
