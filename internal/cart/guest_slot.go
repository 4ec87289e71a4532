package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// MemorySlot keeps slot data in process memory. Tests and tooling use it.
type MemorySlot struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{data: make(map[string][]byte)}
}

func (m *MemorySlot) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemorySlot) Store(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(data))
	copy(stored, data)
	m.data[key] = stored
	return nil
}

type guestStore interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GuestSlotKey(sessionID, slot string) string
}

// GuestSlot is the server-side stand-in for browser local storage: one Redis
// namespace per anonymous cart session, expiring after ttl of inactivity.
type GuestSlot struct {
	store     guestStore
	sessionID string
	ttl       time.Duration
}

var errGuestSessionRequired = errors.New("guest cart session id required")

// NewGuestSlot binds a slot to sessionID.
func NewGuestSlot(store guestStore, sessionID string, ttl time.Duration) (*GuestSlot, error) {
	if store == nil {
		return nil, errors.New("guest slot store required")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errGuestSessionRequired
	}
	return &GuestSlot{store: store, sessionID: sessionID, ttl: ttl}, nil
}

func (g *GuestSlot) Load(ctx context.Context, key string) ([]byte, error) {
	return g.store.GetBytes(ctx, g.store.GuestSlotKey(g.sessionID, key))
}

func (g *GuestSlot) Store(ctx context.Context, key string, data []byte) error {
	return g.store.Set(ctx, g.store.GuestSlotKey(g.sessionID, key), data, g.ttl)
}
