package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/db"
	"github.com/persiashop/storefront-backend/pkg/db/dbtest"
	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/enums"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/metrics"
	"github.com/persiashop/storefront-backend/pkg/outbox"
)

// memoryKV stands in for the Redis client.
type memoryKV struct {
	mu      sync.Mutex
	values  map[string][]byte
	setErr  error
	getHits int
}

func newMemoryKV() *memoryKV {
	return &memoryKV{values: map[string][]byte{}}
}

func (m *memoryKV) toBytes(value any) []byte {
	switch v := value.(type) {
	case []byte:
		return append([]byte(nil), v...)
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprint(v))
	}
}

func (m *memoryKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values[key] = m.toBytes(value)
	return nil
}

func (m *memoryKV) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = m.toBytes(value)
	return true, nil
}

func (m *memoryKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return string(v), nil
}

func (m *memoryKV) GetBytes(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	m.getHits++
	return append([]byte(nil), v...), nil
}

func (m *memoryKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memoryKV) Bump(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(string(m.values[key]), 10, 64)
	n++
	m.values[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

func (m *memoryKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

func (m *memoryKV) LockKey(scope, id string) string { return "sf:lock:" + scope + ":" + id }
func (m *memoryKV) CartCacheKey(userID int64) string {
	return fmt.Sprintf("sf:cart:%d", userID)
}
func (m *memoryKV) CartGenerationKey(userID int64) string {
	return fmt.Sprintf("sf:cart:gen:%d", userID)
}
func (m *memoryKV) GuestSlotKey(sessionID, slot string) string {
	return "sf:guest:" + sessionID + ":" + slot
}

type testService struct {
	svc  Service
	conn *gorm.DB
	kv   *memoryKV
	reg  *prometheus.Registry
}

func newTestService(t *testing.T) testService {
	t.Helper()
	conn := dbtest.Open(t)
	kv := newMemoryKV()
	reg := prometheus.NewRegistry()
	cartMetrics := metrics.NewCartMetrics(reg)

	svc, err := NewService(ServiceParams{
		Repo:       NewRepository(conn),
		Tx:         db.NewFromGorm(conn),
		Outbox:     outbox.NewService(outbox.NewRepository(conn), nil),
		Locks:      kv,
		GuestStore: kv,
		Cache:      NewCache(kv, 15*time.Minute, cartMetrics, nil),
		Metrics:    cartMetrics,
		Config: config.CartConfig{
			GuestTTL:        168 * time.Hour,
			StaleItemAge:    168 * time.Hour,
			MergeLockTTL:    30 * time.Second,
			MaxItemQuantity: 99,
			MaxMergeItems:   100,
		},
	})
	require.NoError(t, err)
	return testService{svc: svc, conn: conn, kv: kv, reg: reg}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}

func TestServiceActivePrefersPersistedCart(t *testing.T) {
	ts := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, ts.conn, "laptop", 1000)

	guest, err := ts.svc.OpenGuest(ctx, "guest-1")
	require.NoError(t, err)
	_, err = ts.svc.AddGuestItem(ctx, guest, LocalItem{ProductID: product.ID, Quantity: 2, UnitPrice: 1000})
	require.NoError(t, err)

	view, err := ts.svc.Active(ctx, 0, guest)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, view.Source)
	assert.Equal(t, 2, view.TotalItems)

	view, err = ts.svc.Active(ctx, 5, guest)
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, view.Source, "no persisted cart yet")

	_, err = ts.svc.AddItem(ctx, 5, ItemInput{ProductID: product.ID, Quantity: 1, UnitPrice: 1000})
	require.NoError(t, err)
	_, err = ts.svc.AddItem(ctx, 5, ItemInput{ProductID: product.ID, Quantity: 1, UnitPrice: 1000})
	require.NoError(t, err)
	require.NoError(t, ts.svc.Clear(ctx, 5))

	view, err = ts.svc.Active(ctx, 5, guest)
	require.NoError(t, err)
	assert.Equal(t, SourcePersisted, view.Source)
	assert.Equal(t, 0, view.TotalItems, "an empty persisted cart beats the guest cart")
}

func TestServiceCachesAndInvalidates(t *testing.T) {
	ts := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, ts.conn, "mouse", 200)

	_, err := ts.svc.AddItem(ctx, 8, ItemInput{ProductID: product.ID, Quantity: 1, UnitPrice: 200})
	require.NoError(t, err)

	view, err := ts.svc.Active(ctx, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalItems)
	require.True(t, ts.kv.has("sf:cart:8"))

	view, err = ts.svc.Active(ctx, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, view.TotalItems)
	assert.Equal(t, 1, ts.kv.getHits)

	_, err = ts.svc.UpdateItem(ctx, 8, view.Items[0].ID, 4)
	require.NoError(t, err)
	assert.False(t, ts.kv.has("sf:cart:8"), "mutations drop the cached cart")

	view, err = ts.svc.Active(ctx, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, view.TotalItems)
	assert.EqualValues(t, 800, view.TotalPrice)
}

func TestServiceRejectsOversizedQuantity(t *testing.T) {
	ts := newTestService(t)
	ctx := context.Background()

	_, err := ts.svc.AddItem(ctx, 1, ItemInput{ProductID: 1, Quantity: 100, UnitPrice: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceCapsResultingLineQuantity(t *testing.T) {
	ts := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, ts.conn, "cable", 100)

	item, err := ts.svc.AddItem(ctx, 4, ItemInput{ProductID: product.ID, Quantity: 60, UnitPrice: 100})
	require.NoError(t, err)
	_, err = ts.svc.AddItem(ctx, 4, ItemInput{ProductID: product.ID, Quantity: 60, UnitPrice: 100})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ts.svc.AddItem(ctx, 4, ItemInput{ProductID: product.ID, Quantity: 39, UnitPrice: 100})
	require.NoError(t, err)

	view, err := ts.svc.Active(ctx, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 99, view.TotalItems)

	// merge always sums, so a merged line may exceed the cap
	_, err = ts.svc.Merge(ctx, 4, []LocalItem{{ProductID: product.ID, Quantity: 30, UnitPrice: 100}})
	require.NoError(t, err)
	view, err = ts.svc.Active(ctx, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 129, view.TotalItems)

	_, err = ts.svc.UpdateItem(ctx, 4, item.ID, 130)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	result, err := ts.svc.UpdateItem(ctx, 4, item.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, 100, result.Item.Quantity)

	guest, err := ts.svc.OpenGuest(ctx, "guest-cap")
	require.NoError(t, err)
	_, err = ts.svc.AddGuestItem(ctx, guest, LocalItem{ProductID: product.ID, Quantity: 60, UnitPrice: 100})
	require.NoError(t, err)
	_, err = ts.svc.AddGuestItem(ctx, guest, LocalItem{ProductID: product.ID, Quantity: 60, UnitPrice: 100})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Len(t, guest.Items(), 1)
	assert.Equal(t, 60, guest.Items()[0].Quantity)
}

func TestServiceMergeGuestClearsOnlyAfterSuccess(t *testing.T) {
	ts := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, ts.conn, "phone", 500)

	_, err := ts.svc.AddItem(ctx, 3, ItemInput{ProductID: product.ID, Quantity: 3, UnitPrice: 500})
	require.NoError(t, err)

	guest, err := ts.svc.OpenGuest(ctx, "guest-merge")
	require.NoError(t, err)
	_, err = ts.svc.AddGuestItem(ctx, guest, LocalItem{ProductID: product.ID, Quantity: 2, UnitPrice: 500})
	require.NoError(t, err)

	result, err := ts.svc.MergeGuest(ctx, 3, guest)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Empty(t, guest.Items())

	reopened, err := ts.svc.OpenGuest(ctx, "guest-merge")
	require.NoError(t, err)
	assert.Empty(t, reopened.Items())

	view, err := ts.svc.Active(ctx, 3, reopened)
	require.NoError(t, err)
	assert.Equal(t, 5, view.TotalItems)

	var events []models.OutboxEvent
	require.NoError(t, ts.conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventCartMerged, events[0].EventType)
	assert.Equal(t, enums.AggregateCart, events[0].AggregateType)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(events[0].Payload, &envelope))
	assert.Equal(t, int64(3), envelope.Actor.UserID)
	assert.False(t, ts.kv.has("sf:lock:cart-merge:3"), "lock is released after the merge")
}

func TestServiceMergeFailureKeepsGuestCart(t *testing.T) {
	ts := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, ts.conn, "tablet", 700)

	guest, err := ts.svc.OpenGuest(ctx, "guest-fail")
	require.NoError(t, err)
	_, err = ts.svc.AddGuestItem(ctx, guest, LocalItem{ProductID: product.ID, Quantity: 1, UnitPrice: 700})
	require.NoError(t, err)

	// Dropping the outbox table makes the event write fail inside the merge transaction.
	require.NoError(t, ts.conn.Exec("DROP TABLE outbox_events").Error)

	_, err = ts.svc.MergeGuest(ctx, 4, guest)
	require.Error(t, err)
	assert.Len(t, guest.Items(), 1)

	var count int64
	require.NoError(t, ts.conn.Model(&models.CartItem{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestServiceMergeConflictsWhileLocked(t *testing.T) {
	ts := newTestService(t)
	ctx := context.Background()

	ok, err := ts.kv.SetNX(ctx, "sf:lock:cart-merge:6", "someone-else", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = ts.svc.Merge(ctx, 6, []LocalItem{{ProductID: 1, Quantity: 1}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	_, err = ts.svc.Merge(ctx, 0, nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestServiceGuestOperations(t *testing.T) {
	ts := newTestService(t)
	ctx := context.Background()

	_, err := ts.svc.OpenGuest(ctx, "  ")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	guest, err := ts.svc.OpenGuest(ctx, "guest-ops")
	require.NoError(t, err)

	view, err := ts.svc.AddGuestItem(ctx, guest, LocalItem{ProductID: 1, Quantity: 2, SelectedOptions: opts(1, 10), UnitPrice: 300})
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalItems)

	view, err = ts.svc.UpdateGuestItem(ctx, guest, 1, opts(1, 10), 5)
	require.NoError(t, err)
	assert.EqualValues(t, 1500, view.TotalPrice)

	view, err = ts.svc.UpdateGuestItem(ctx, guest, 1, opts(1, 10), 0)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = ts.svc.AddGuestItem(ctx, guest, LocalItem{ProductID: 2, Quantity: 1, UnitPrice: 10})
	require.NoError(t, err)
	view, err = ts.svc.RemoveGuestItem(ctx, guest, 2, nil)
	require.NoError(t, err)
	assert.Empty(t, view.Items)

	_, err = ts.svc.AddGuestItem(ctx, guest, LocalItem{ProductID: 3, Quantity: 1, UnitPrice: 10})
	require.NoError(t, err)
	require.NoError(t, ts.svc.ClearGuest(ctx, guest))
	assert.Empty(t, guest.Items())
}

func TestServiceActiveSurvivesCacheWriteFailure(t *testing.T) {
	ts := newTestService(t)
	ctx := context.Background()
	product := seedProduct(t, ts.conn, "speaker", 900)

	_, err := ts.svc.AddItem(ctx, 12, ItemInput{ProductID: product.ID, Quantity: 2, UnitPrice: 900})
	require.NoError(t, err)

	ts.kv.setErr = errors.New("redis down")
	view, err := ts.svc.Active(ctx, 12, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 1800, view.TotalPrice)
	assert.False(t, ts.kv.has("sf:cart:12"))

	mfs, err := ts.reg.Gather()
	require.NoError(t, err)
	var misses float64
	for _, mf := range mfs {
		if mf.GetName() != "storefront_cart_cache_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" && l.GetValue() == metrics.CacheMiss {
					misses = m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.EqualValues(t, 1, misses)
}
