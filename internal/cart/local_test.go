package cart

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time { return c.t }

func newTestLocalStore(t *testing.T) (*LocalStore, *MemorySlot, *fixedClock) {
	t.Helper()
	slot := NewMemorySlot()
	clock := &fixedClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store, err := LoadLocalStore(context.Background(), slot, clock.now)
	if err != nil {
		t.Fatalf("load local store: %v", err)
	}
	return store, slot, clock
}

func snapshot(t *testing.T, slot *MemorySlot) []LocalItem {
	t.Helper()
	data, err := slot.Load(context.Background(), LocalCartKey)
	if err != nil {
		t.Fatalf("load slot: %v", err)
	}
	var items []LocalItem
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("decode slot: %v", err)
	}
	return items
}

func TestLocalAddMergesIdenticalItems(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, slot, _ := newTestLocalStore(t)

	if _, err := store.Add(ctx, LocalItem{ProductID: 1, Quantity: 2, SelectedOptions: opts(), UnitPrice: 1000}); err != nil {
		t.Fatalf("add: %v", err)
	}
	items, err := store.Add(ctx, LocalItem{ProductID: 1, Quantity: 3, UnitPrice: 1000})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if len(items) != 1 || items[0].Quantity != 5 {
		t.Fatalf("expected one line of quantity 5, got %+v", items)
	}
	if persisted := snapshot(t, slot); len(persisted) != 1 || persisted[0].Quantity != 5 {
		t.Fatalf("slot not rewritten with merged line: %+v", persisted)
	}
}

func TestLocalAddAppendsDistinctOptionSets(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _, clock := newTestLocalStore(t)

	store.Add(ctx, LocalItem{ProductID: 1, Quantity: 1, SelectedOptions: opts(1, 10)})
	clock.t = clock.t.Add(time.Minute)
	items, _ := store.Add(ctx, LocalItem{ProductID: 1, Quantity: 1, SelectedOptions: opts(1, 11)})

	if len(items) != 2 {
		t.Fatalf("expected two lines, got %d", len(items))
	}
	if !items[1].Timestamp.Equal(clock.t) {
		t.Fatalf("expected new line stamped with current time")
	}
}

func TestLocalUpdateAndRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, slot, clock := newTestLocalStore(t)

	store.Add(ctx, LocalItem{ProductID: 1, Quantity: 1, SelectedOptions: opts(1, 10, 2, 20)})
	store.Add(ctx, LocalItem{ProductID: 2, Quantity: 4})

	clock.t = clock.t.Add(time.Hour)
	items, err := store.Update(ctx, 1, opts(2, 20, 1, 10), 7)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if items[0].Quantity != 7 || !items[0].Timestamp.Equal(clock.t) {
		t.Fatalf("expected quantity replaced and timestamp refreshed, got %+v", items[0])
	}

	items, _ = store.Remove(ctx, 2, nil)
	if len(items) != 1 || items[0].ProductID != 1 {
		t.Fatalf("expected product 2 removed, got %+v", items)
	}
	if len(snapshot(t, slot)) != 1 {
		t.Fatalf("expected slot to reflect removal")
	}
}

// Updating a line that is not in the cart is intentionally a no-op.
func TestLocalUpdateMissingItemIsNoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _, _ := newTestLocalStore(t)
	store.Add(ctx, LocalItem{ProductID: 1, Quantity: 2})

	items, err := store.Update(ctx, 99, nil, 5)
	if err != nil {
		t.Fatalf("update of missing item should not fail: %v", err)
	}
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("missing-item update must not change cart: %+v", items)
	}

	items, err = store.Remove(ctx, 99, nil)
	if err != nil || len(items) != 1 {
		t.Fatalf("missing-item remove must be a no-op, got %+v err=%v", items, err)
	}
}

func TestLocalClearWritesEmptySnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, slot, _ := newTestLocalStore(t)
	store.Add(ctx, LocalItem{ProductID: 1, Quantity: 2})

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(store.Items()) != 0 {
		t.Fatalf("expected empty cart")
	}
	data, _ := slot.Load(ctx, LocalCartKey)
	if string(data) != "[]" {
		t.Fatalf("expected empty array snapshot, got %s", data)
	}
}

func TestLocalStoreReloadsSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, slot, clock := newTestLocalStore(t)
	store.Add(ctx, LocalItem{ProductID: 8, Quantity: 3, SelectedOptions: opts(1, 2), UnitPrice: 2500})

	reloaded, err := LoadLocalStore(ctx, slot, clock.now)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	items := reloaded.Items()
	if len(items) != 1 || items[0].UnitPrice != 2500 || len(items[0].SelectedOptions) != 1 {
		t.Fatalf("unexpected reloaded items %+v", items)
	}
}

func TestLocalStoreIgnoresCorruptSnapshot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	slot := NewMemorySlot()
	slot.Store(ctx, LocalCartKey, []byte("{not json"))

	store, err := LoadLocalStore(ctx, slot, nil)
	if err != nil {
		t.Fatalf("corrupt snapshot should load as empty: %v", err)
	}
	if len(store.Items()) != 0 {
		t.Fatalf("expected empty cart")
	}
}

func TestLocalCleanupStale(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store, _, clock := newTestLocalStore(t)

	store.Add(ctx, LocalItem{ProductID: 1, Quantity: 1})
	clock.t = clock.t.Add(6 * 24 * time.Hour)
	store.Add(ctx, LocalItem{ProductID: 2, Quantity: 1})
	clock.t = clock.t.Add(2 * 24 * time.Hour)

	removed, err := store.CleanupStale(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one stale line removed, got %d", removed)
	}
	items := store.Items()
	if len(items) != 1 || items[0].ProductID != 2 {
		t.Fatalf("expected only fresh line to remain, got %+v", items)
	}
}

type failingSlot struct{ *MemorySlot }

func (f *failingSlot) Store(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func TestLocalStoreSurfacesSlotFailure(t *testing.T) {
	t.Parallel()
	slot := &failingSlot{MemorySlot: NewMemorySlot()}
	store, err := LoadLocalStore(context.Background(), slot, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := store.Add(context.Background(), LocalItem{ProductID: 1, Quantity: 1}); err == nil {
		t.Fatalf("expected slot write failure to surface")
	}
}
