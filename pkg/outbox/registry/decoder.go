package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/persiashop/storefront-backend/pkg/enums"
	"github.com/persiashop/storefront-backend/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (any, error)

type versionedType struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, envelope version) to a payload decoder.
// It is shared by the relay and the consumers so both sides agree on schemas.
type DecoderRegistry struct {
	mu       sync.RWMutex
	decoders map[versionedType]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[versionedType]decoderFunc{}}
}

// NewDefaultDecoderRegistry knows v1 of every storefront event.
func NewDefaultDecoderRegistry() *DecoderRegistry {
	reg := NewDecoderRegistry()
	reg.Register(enums.EventCartMerged, 1, decodeAs[payloads.CartMergedEvent])
	reg.Register(enums.EventOrderCreated, 1, decodeAs[payloads.OrderCreatedEvent])
	reg.Register(enums.EventOrderStatusChanged, 1, decodeAs[payloads.OrderStatusChangedEvent])
	return reg
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode decoderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[versionedType{eventType, version}] = decode
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	r.mu.RLock()
	decode, ok := r.decoders[versionedType{eventType, version}]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decode(payload)
}

// decodeAs returns a *T so handlers can type-switch on pointer payloads.
func decodeAs[T any](payload json.RawMessage) (any, error) {
	out := new(T)
	if err := json.Unmarshal(payload, out); err != nil {
		return nil, err
	}
	return out, nil
}
