package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/persiashop/storefront-backend/internal/analytics/types"
	"github.com/persiashop/storefront-backend/pkg/bigquery"
	"github.com/persiashop/storefront-backend/pkg/enums"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers rows to the events table.
type Writer interface {
	InsertEvents(ctx context.Context, rows ...bigquery.EventRow) error
}

// Decoder turns a versioned payload into its typed event.
type Decoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error)
}

// Handler builds the analytics row for one decoded event.
type Handler interface {
	Row(envelope types.Envelope, payload any) (bigquery.EventRow, error)
}

// Router decodes each envelope with the shared payload decoders and writes
// one row per event.
type Router struct {
	writer   Writer
	decoder  Decoder
	handlers map[enums.OutboxEventType]Handler
	logg     *logger.Logger
	now      func() time.Time
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, decoder Decoder, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if decoder == nil {
		return nil, errors.New("decoder is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	handlers := map[enums.OutboxEventType]Handler{
		enums.EventCartMerged:         cartMergedHandler{},
		enums.EventOrderCreated:       orderCreatedHandler{},
		enums.EventOrderStatusChanged: orderStatusChangedHandler{},
	}
	for event, custom := range overrides {
		if _, ok := handlers[event]; !ok || custom == nil {
			continue
		}
		handlers[event] = custom
	}

	return &Router{
		writer:   writer,
		decoder:  decoder,
		handlers: handlers,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// Handle decodes the envelope, builds its row and inserts it.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handler, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	version := envelope.Version
	if version <= 0 {
		version = 1
	}
	payload, err := r.decoder.Decode(envelope.EventType, version, envelope.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	row, err := handler.Row(envelope, payload)
	if err != nil {
		return err
	}
	row.EventID = envelope.EventID
	row.EventType = string(envelope.EventType)
	row.AggregateType = string(envelope.AggregateType)
	row.AggregateID = envelope.AggregateID
	row.OccurredAt = envelope.OccurredAt
	row.IngestedAt = r.now().UTC()
	row.Payload = string(envelope.Payload)

	if err := r.writer.InsertEvents(ctx, row); err != nil {
		r.logg.Error(ctx, "failed to insert analytics row", err)
		return err
	}
	return nil
}
