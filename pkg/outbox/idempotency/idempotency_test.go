package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	keys map[string]time.Duration
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{keys: map[string]time.Duration{}}
}

func (s *memoryStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = ttl
	return true, nil
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(s.keys, k)
	}
	return nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func TestCheckAndMarkProcessedClaimsOnce(t *testing.T) {
	store := newMemoryStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	seen, err := manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.False(t, seen)

	key := "sf:idempotency:consumer:analytics:" + eventID.String()
	assert.Equal(t, 24*time.Hour, store.keys[key])

	seen, err = manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = manager.CheckAndMarkProcessed(ctx, "audit", eventID)
	require.NoError(t, err)
	assert.False(t, seen, "claims are per consumer")
}

func TestDeleteAllowsRetry(t *testing.T) {
	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	ctx := context.Background()
	eventID := uuid.New()

	_, err = manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	require.NoError(t, manager.Delete(ctx, "analytics", eventID))

	seen, err := manager.CheckAndMarkProcessed(ctx, "analytics", eventID)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestStoreErrorsPropagate(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("redis: connection refused")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "analytics", uuid.New())
	assert.ErrorIs(t, err, store.err)
}

func TestManagerRejectsBadInput(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)
	_, err = NewManager(newMemoryStore(), -time.Second)
	assert.Error(t, err)

	manager, err := NewManager(newMemoryStore(), time.Hour)
	require.NoError(t, err)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "", uuid.New())
	assert.ErrorIs(t, err, errNoConsumer)
	assert.ErrorIs(t, manager.Delete(context.Background(), "analytics", uuid.Nil), errNoEventID)
}
