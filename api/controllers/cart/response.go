package cart

import (
	cartsvc "github.com/persiashop/storefront-backend/internal/cart"
)

type itemResponse struct {
	Item *cartsvc.ViewItem `json:"item,omitempty"`
	// Deleted is set when a quantity update of zero removed the line.
	Deleted bool         `json:"deleted"`
	Cart    cartsvc.View `json:"cart"`
}

type mergeResponse struct {
	Merge *cartsvc.MergeResult `json:"merge"`
	Cart  cartsvc.View         `json:"cart"`
}

func findViewItem(view cartsvc.View, itemID int64) *cartsvc.ViewItem {
	for i := range view.Items {
		if view.Items[i].ID == itemID {
			return &view.Items[i]
		}
	}
	return nil
}
