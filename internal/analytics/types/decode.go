package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/persiashop/storefront-backend/pkg/enums"
	"github.com/persiashop/storefront-backend/pkg/outbox"
)

// ErrMalformed marks messages that can never be processed.
var ErrMalformed = errors.New("malformed analytics message")

// FromMessage assembles an Envelope from a delivered body and its attributes.
// The stored envelope in the body wins; attributes fill what it leaves out.
func FromMessage(body []byte, attrs map[string]string) (Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(body, &stored); err != nil {
		return Envelope{}, fmt.Errorf("%w: body: %v", ErrMalformed, err)
	}
	attr := func(key string) string { return strings.TrimSpace(attrs[key]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	env := Envelope{
		EventID:       firstNonEmpty(stored.EventID, attr("event_id")),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   attr("aggregate_id"),
		Version:       stored.Version,
		OccurredAt:    stored.OccurredAt,
		Payload:       stored.Data,
	}
	if env.EventID == "" {
		return Envelope{}, fmt.Errorf("%w: event_id missing", ErrMalformed)
	}
	if env.AggregateID == "" {
		return Envelope{}, fmt.Errorf("%w: aggregate_id missing", ErrMalformed)
	}
	if env.Version <= 0 {
		if v, err := strconv.Atoi(attr("version")); err == nil && v > 0 {
			env.Version = v
		}
	}
	if env.OccurredAt.IsZero() {
		if ts, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			env.OccurredAt = ts
		}
	}
	env.OccurredAt = env.OccurredAt.UTC()
	return env, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
