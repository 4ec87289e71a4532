package cart

import (
	"context"
	"fmt"

	cartsvc "github.com/persiashop/storefront-backend/internal/cart"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/types"
)

type addItemRequest struct {
	ProductID       int64                 `json:"product_id" validate:"required,gt=0"`
	Quantity        int                   `json:"quantity" validate:"required,gt=0"`
	SelectedOptions types.SelectedOptions `json:"selected_options" validate:"omitempty,dive"`
	// UnitPrice is only honoured when server-side pricing is off.
	UnitPrice int64 `json:"unit_price" validate:"gte=0"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"gte=0"`
}

type guestItemRequest struct {
	ProductID       int64                 `json:"product_id" validate:"required,gt=0"`
	Quantity        int                   `json:"quantity" validate:"gte=0"`
	SelectedOptions types.SelectedOptions `json:"selected_options" validate:"omitempty,dive"`
}

type localItemRequest struct {
	ProductID       int64                 `json:"product_id"`
	Quantity        int                   `json:"quantity"`
	SelectedOptions types.SelectedOptions `json:"selected_options"`
	UnitPrice       int64                 `json:"unit_price"`
}

// mergeRequest carries a client-held local cart. An empty body merges the
// guest cart named by the X-Cart-Session header instead.
type mergeRequest struct {
	Items []localItemRequest `json:"items"`
}

type pricer interface {
	PriceFor(ctx context.Context, productID int64, selected types.SelectedOptions) (int64, error)
}

// Pricing decides where a line's unit price comes from.
type Pricing struct {
	Catalog pricer
	// ServerSide ignores client supplied prices.
	ServerSide bool
}

func (p Pricing) unitPrice(ctx context.Context, productID int64, selected types.SelectedOptions, clientPrice int64) (int64, error) {
	if !p.ServerSide && clientPrice > 0 {
		return clientPrice, nil
	}
	if p.Catalog == nil {
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "pricing unavailable")
	}
	return p.Catalog.PriceFor(ctx, productID, selected)
}

// toLocalItems validates the raw lines before pricing so that the item index
// in the error matches the request.
func (p Pricing) toLocalItems(ctx context.Context, items []localItemRequest, maxItems int) ([]cartsvc.LocalItem, error) {
	local := make([]cartsvc.LocalItem, 0, len(items))
	for _, item := range items {
		local = append(local, cartsvc.LocalItem{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			SelectedOptions: item.SelectedOptions,
			UnitPrice:       item.UnitPrice,
		})
	}
	if err := cartsvc.ValidateLocalItems(local, maxItems); err != nil {
		return nil, err
	}
	if !p.ServerSide {
		return local, nil
	}
	for i := range local {
		price, err := p.unitPrice(ctx, local[i].ProductID, local[i].SelectedOptions, 0)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("item %d references an unavailable product", i)).
					WithDetails(map[string]any{"item_index": i})
			}
			return nil, err
		}
		local[i].UnitPrice = price
	}
	return local, nil
}
