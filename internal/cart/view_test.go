package cart

import (
	"testing"

	"github.com/persiashop/storefront-backend/pkg/db/models"
)

func TestBuildViewPersistedWinsEvenWhenEmpty(t *testing.T) {
	t.Parallel()

	local := []LocalItem{{ProductID: 1, Quantity: 4, UnitPrice: 500}}
	view := BuildView(true, &models.Cart{ID: 9}, local)

	if view.Source != SourcePersisted || view.CartID != 9 {
		t.Fatalf("expected persisted source, got %+v", view)
	}
	if view.TotalItems != 0 || view.TotalPrice != 0 || len(view.Items) != 0 {
		t.Fatalf("empty persisted cart must hide local items, got %+v", view)
	}
}

func TestBuildViewFallsBackToLocal(t *testing.T) {
	t.Parallel()

	local := []LocalItem{
		{ProductID: 1, Quantity: 2, UnitPrice: 1000},
		{ProductID: 2, Quantity: 3, UnitPrice: 250, SelectedOptions: opts(1, 10)},
	}

	for _, tc := range []struct {
		name          string
		authenticated bool
		persisted     *models.Cart
	}{
		{"anonymous", false, nil},
		{"anonymous ignores stray persisted cart", false, &models.Cart{ID: 1}},
		{"authenticated without cart", true, nil},
	} {
		view := BuildView(tc.authenticated, tc.persisted, local)
		if view.Source != SourceLocal {
			t.Fatalf("%s: expected local source, got %s", tc.name, view.Source)
		}
		if view.TotalItems != 5 {
			t.Fatalf("%s: expected 5 items, got %d", tc.name, view.TotalItems)
		}
		if view.TotalPrice != 2*1000+3*250 {
			t.Fatalf("%s: unexpected total price %d", tc.name, view.TotalPrice)
		}
	}
}

func TestBuildViewPersistedTotalsAndProjection(t *testing.T) {
	t.Parallel()

	img := "https://cdn.example/laptop.jpg"
	cart := &models.Cart{
		ID: 3,
		Items: []models.CartItem{
			{ID: 11, ProductID: 1, Quantity: 2, UnitPrice: 12_000_000, Product: &models.Product{ID: 1, Name: "لپ‌تاپ", Slug: "laptop", ImageURL: &img, BasePrice: 11_000_000}},
			{ID: 12, ProductID: 2, Quantity: 1, UnitPrice: 450_000, SelectedOptions: opts(4, 40)},
		},
	}

	view := BuildView(true, cart, nil)
	if view.TotalItems != 3 {
		t.Fatalf("expected 3 items, got %d", view.TotalItems)
	}
	if view.TotalPrice != 24_450_000 {
		t.Fatalf("unexpected total %d", view.TotalPrice)
	}
	if view.Items[0].Product == nil || view.Items[0].Product.Slug != "laptop" {
		t.Fatalf("expected product projection on first line")
	}
	if view.Items[1].Product != nil {
		t.Fatalf("missing product should not be fabricated")
	}
	if view.Items[0].LineTotal != 24_000_000 {
		t.Fatalf("unexpected line total %d", view.Items[0].LineTotal)
	}
	if view.Items[0].SelectedOptions == nil {
		t.Fatalf("option-less line should render an empty list")
	}
}
