package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
)

type memoryIdempotencyStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newMemoryIdempotencyStore() *memoryIdempotencyStore {
	return &memoryIdempotencyStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryIdempotencyStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key], _ = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.ttls, key)
	}
	return nil
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func mergeRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/merge", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

var mergePolicy = IdempotencyPolicy{Scope: "cart.merge", TTL: time.Hour}

func TestIdempotencyRejectsMissingOrOversizedKey(t *testing.T) {
	mw := Idempotency(newMemoryIdempotencyStore(), mergePolicy, nil)
	called := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	for _, key := range []string{"", "   ", strings.Repeat("k", 256)} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, mergeRequest(key, `{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(pkgerrors.CodeValidation), errorCode(t, rec))
	}
	assert.False(t, called)
}

func TestIdempotencyReplaysFinishedResponse(t *testing.T) {
	store := newMemoryIdempotencyStore()
	calls := 0
	h := Idempotency(store, mergePolicy, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items_added":2}`))
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, mergeRequest("merge-1", `{"items":[]}`))
	require.Equal(t, http.StatusOK, first.Code)

	replay := httptest.NewRecorder()
	h.ServeHTTP(replay, mergeRequest("merge-1", `{"items":[]}`))
	assert.Equal(t, http.StatusOK, replay.Code)
	assert.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	assert.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"items_added":2}`, replay.Body.String())
	assert.Equal(t, 1, calls)

	for _, ttl := range store.ttls {
		assert.Equal(t, time.Hour, ttl)
	}
}

func TestIdempotencyRejectsReusedKeyWithDifferentBody(t *testing.T) {
	h := Idempotency(newMemoryIdempotencyStore(), mergePolicy, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), mergeRequest("merge-2", `{"items":[1]}`))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, mergeRequest("merge-2", `{"items":[2]}`))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyConflictsWhileFirstRequestRuns(t *testing.T) {
	store := newMemoryIdempotencyStore()
	mw := Idempotency(store, IdempotencyPolicy{Scope: "orders.create", PendingTTL: 30 * time.Second}, nil)

	var inner *httptest.ResponseRecorder
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// a duplicate arrives before this handler finishes
		inner = httptest.NewRecorder()
		mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("duplicate must not reach the handler")
		})).ServeHTTP(inner, mergeRequest("order-1", `{}`))
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, mergeRequest("order-1", `{}`))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
	assert.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, inner))
}

func TestIdempotencyReleasesKeyOnServerError(t *testing.T) {
	store := newMemoryIdempotencyStore()
	status := http.StatusServiceUnavailable
	calls := 0
	h := Idempotency(store, mergePolicy, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	h.ServeHTTP(httptest.NewRecorder(), mergeRequest("merge-3", `{}`))
	assert.Empty(t, store.data)

	status = http.StatusOK
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, mergeRequest("merge-3", `{}`))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, calls)
}

func TestIdempotencyReleasesKeyOnPanic(t *testing.T) {
	store := newMemoryIdempotencyStore()
	h := Idempotency(store, mergePolicy, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	assert.Panics(t, func() { h.ServeHTTP(httptest.NewRecorder(), mergeRequest("merge-4", `{}`)) })
	assert.Empty(t, store.data)
}

func TestIdempotencyKeysAreScopedPerCaller(t *testing.T) {
	calls := 0
	h := Idempotency(newMemoryIdempotencyStore(), mergePolicy, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	for _, userID := range []int64{1, 2} {
		req := mergeRequest("same", `{}`)
		req = req.WithContext(WithUserID(req.Context(), userID))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	guest := mergeRequest("same", `{}`)
	guest = guest.WithContext(WithCartSession(guest.Context(), "guest-abc"))
	h.ServeHTTP(httptest.NewRecorder(), guest)

	assert.Equal(t, 3, calls)
}
