package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/persiashop/storefront-backend/pkg/types"
)

// LocalCartKey is the fixed slot name the anonymous cart is written under.
const LocalCartKey = "cart"

// LocalItem is a line of the anonymous cart. Timestamp is refreshed on every
// mutation and only feeds stale-item cleanup.
type LocalItem struct {
	ProductID       int64                 `json:"product_id"`
	Quantity        int                   `json:"quantity"`
	SelectedOptions types.SelectedOptions `json:"selected_options"`
	UnitPrice       int64                 `json:"unit_price"`
	Timestamp       time.Time             `json:"timestamp"`
}

func (i LocalItem) identity() Identity {
	return Identity{ProductID: i.ProductID, Options: i.SelectedOptions}
}

// Slot is durable client-side key/value storage.
// Load returns nil data, not an error, for a key that was never written.
type Slot interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, data []byte) error
}

// LocalStore holds an anonymous cart and writes the whole collection back to
// its slot after every mutation. It is not safe for concurrent use; callers
// own one store per session.
type LocalStore struct {
	slot  Slot
	items []LocalItem
	now   func() time.Time
}

// LoadLocalStore reads the current snapshot from slot. An unreadable snapshot
// is treated as an empty cart so a corrupted client slot never blocks the UI.
func LoadLocalStore(ctx context.Context, slot Slot, now func() time.Time) (*LocalStore, error) {
	if slot == nil {
		return nil, fmt.Errorf("local cart slot required")
	}
	if now == nil {
		now = time.Now
	}
	store := &LocalStore{slot: slot, now: now}

	data, err := slot.Load(ctx, LocalCartKey)
	if err != nil {
		return nil, fmt.Errorf("load local cart: %w", err)
	}
	if len(data) > 0 {
		var items []LocalItem
		if json.Unmarshal(data, &items) == nil {
			store.items = items
		}
	}
	return store, nil
}

// Items returns a copy of the current lines in insertion order.
func (s *LocalStore) Items() []LocalItem {
	out := make([]LocalItem, len(s.items))
	copy(out, s.items)
	return out
}

// Add folds item into an identical line by summing quantities, or appends it.
func (s *LocalStore) Add(ctx context.Context, item LocalItem) ([]LocalItem, error) {
	now := s.now().UTC()
	if idx := s.find(item.identity()); idx >= 0 {
		s.items[idx].Quantity += item.Quantity
		s.items[idx].Timestamp = now
	} else {
		item.SelectedOptions = item.SelectedOptions.Clone()
		item.Timestamp = now
		s.items = append(s.items, item)
	}
	return s.persist(ctx)
}

func (s *LocalStore) lineQuantity(id Identity) int {
	if idx := s.find(id); idx >= 0 {
		return s.items[idx].Quantity
	}
	return 0
}

// Update replaces the quantity of the matching line. A missing line is a
// silent no-op, but the snapshot is still written.
func (s *LocalStore) Update(ctx context.Context, productID int64, options types.SelectedOptions, quantity int) ([]LocalItem, error) {
	if idx := s.find(Identity{ProductID: productID, Options: options}); idx >= 0 {
		s.items[idx].Quantity = quantity
		s.items[idx].Timestamp = s.now().UTC()
	}
	return s.persist(ctx)
}

// Remove drops the matching line, if any.
func (s *LocalStore) Remove(ctx context.Context, productID int64, options types.SelectedOptions) ([]LocalItem, error) {
	id := Identity{ProductID: productID, Options: options}
	kept := s.items[:0]
	for _, item := range s.items {
		if !SameItem(item.identity(), id) {
			kept = append(kept, item)
		}
	}
	s.items = kept
	return s.persist(ctx)
}

// Clear empties the cart.
func (s *LocalStore) Clear(ctx context.Context) error {
	s.items = nil
	_, err := s.persist(ctx)
	return err
}

// CleanupStale drops lines not touched for longer than maxAge and reports how
// many were removed. Nothing is written when nothing was dropped.
func (s *LocalStore) CleanupStale(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 || len(s.items) == 0 {
		return 0, nil
	}
	cutoff := s.now().UTC().Add(-maxAge)
	kept := s.items[:0]
	for _, item := range s.items {
		if item.Timestamp.After(cutoff) {
			kept = append(kept, item)
		}
	}
	removed := len(s.items) - len(kept)
	s.items = kept
	if removed == 0 {
		return 0, nil
	}
	_, err := s.persist(ctx)
	return removed, err
}

func (s *LocalStore) find(id Identity) int {
	for i := range s.items {
		if SameItem(s.items[i].identity(), id) {
			return i
		}
	}
	return -1
}

func (s *LocalStore) persist(ctx context.Context) ([]LocalItem, error) {
	items := s.items
	if items == nil {
		items = []LocalItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("encode local cart: %w", err)
	}
	if err := s.slot.Store(ctx, LocalCartKey, data); err != nil {
		return nil, fmt.Errorf("store local cart: %w", err)
	}
	return s.Items(), nil
}
