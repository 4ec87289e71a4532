package cart

import (
	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/types"
)

// Cart sources reported by View.Source.
const (
	SourcePersisted = "persisted"
	SourceLocal     = "local"
)

// ViewItem is one line of the active cart as shown to the storefront.
type ViewItem struct {
	// ID is set for persisted lines only.
	ID              int64                 `json:"id,omitempty"`
	ProductID       int64                 `json:"product_id"`
	Quantity        int                   `json:"quantity"`
	SelectedOptions types.SelectedOptions `json:"selected_options"`
	UnitPrice       int64                 `json:"unit_price"`
	LineTotal       int64                 `json:"line_total"`
	Product         *ProductSummary       `json:"product,omitempty"`
}

// ProductSummary is the catalog projection joined onto persisted lines.
type ProductSummary struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	ImageURL  *string `json:"image_url,omitempty"`
	BasePrice int64   `json:"base_price"`
}

// View is the authoritative cart for a caller. Totals are derived on every
// build and never stored.
type View struct {
	Source     string     `json:"source"`
	CartID     int64      `json:"cart_id,omitempty"`
	Items      []ViewItem `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice int64      `json:"total_price"`
}

// BuildView picks the authoritative cart. An authenticated caller's persisted
// cart wins whenever it exists, even when empty; otherwise the local lines are
// shown.
func BuildView(authenticated bool, persisted *models.Cart, local []LocalItem) View {
	view := View{Items: []ViewItem{}}
	if authenticated && persisted != nil {
		view.Source = SourcePersisted
		view.CartID = persisted.ID
		for _, item := range persisted.Items {
			view.Items = append(view.Items, ViewItem{
				ID:              item.ID,
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				SelectedOptions: normalizeOptions(item.SelectedOptions),
				UnitPrice:       item.UnitPrice,
				Product:         summarize(item.Product),
			})
		}
	} else {
		view.Source = SourceLocal
		for _, item := range local {
			view.Items = append(view.Items, ViewItem{
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				SelectedOptions: normalizeOptions(item.SelectedOptions),
				UnitPrice:       item.UnitPrice,
			})
		}
	}

	for i := range view.Items {
		line := &view.Items[i]
		line.LineTotal = int64(line.Quantity) * line.UnitPrice
		view.TotalItems += line.Quantity
		view.TotalPrice += line.LineTotal
	}
	return view
}

func summarize(p *models.Product) *ProductSummary {
	if p == nil {
		return nil
	}
	return &ProductSummary{
		ID:        p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		ImageURL:  p.ImageURL,
		BasePrice: p.BasePrice,
	}
}
