// Package registry knows every outbox event the storefront emits: which
// aggregate owns it, which topic it is published to and how its payload decodes.
package registry

import (
	"errors"
	"fmt"
	"slices"

	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/enums"
	"github.com/persiashop/storefront-backend/pkg/outbox"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
}

// ResolvedEvent is an outbox row that passed validation, with its typed payload.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	routes   map[enums.OutboxEventType]EventDescriptor
	decoders *DecoderRegistry
}

// NewEventRegistry routes every storefront event to the single events topic and
// decodes payloads with the default decoders.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.EventsTopic == "" {
		return nil, errors.New("events topic is required")
	}
	reg := &EventRegistry{
		routes:   map[enums.OutboxEventType]EventDescriptor{},
		decoders: NewDefaultDecoderRegistry(),
	}
	for eventType, aggregate := range map[enums.OutboxEventType]enums.OutboxAggregateType{
		enums.EventCartMerged:         enums.AggregateCart,
		enums.EventOrderCreated:       enums.AggregateOrder,
		enums.EventOrderStatusChanged: enums.AggregateOrder,
	} {
		reg.routes[eventType] = EventDescriptor{EventType: eventType, AggregateType: aggregate, Topic: cfg.EventsTopic}
	}
	return reg, nil
}

// Topics lists the distinct topics, sorted.
func (r *EventRegistry) Topics() []string {
	var topics []string
	for _, d := range r.routes {
		if !slices.Contains(topics, d.Topic) {
			topics = append(topics, d.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

// Resolve checks the row against its descriptor and decodes the payload. Every
// failure is a NonRetryableError: the row will never become publishable.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.routes[row.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", row.EventType)
	case desc.AggregateType != row.AggregateType:
		return nil, permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, row.AggregateType)
	case row.AggregateID == "":
		return nil, permanent("missing aggregate_id")
	}

	env, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}
	if !env.HasData() {
		return nil, permanent("payload missing for %s", row.EventType)
	}
	payload, err := r.decoders.Decode(row.EventType, env.Version, env.Data)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}

func permanent(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}
