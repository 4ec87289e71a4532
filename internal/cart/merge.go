package cart

import (
	"context"
	"fmt"

	"github.com/persiashop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
)

// MergeResult summarizes a completed merge of a local cart into a persisted one.
type MergeResult struct {
	CartID   int64 `json:"cart_id"`
	Updated  int   `json:"updated"`
	Inserted int   `json:"inserted"`
	// Quantity is the total number of units carried over from the local cart.
	Quantity int `json:"quantity"`
}

// MergeFailure is attached as details to a PARTIAL_MERGE error.
type MergeFailure struct {
	ItemIndex int   `json:"item_index"`
	ProductID int64 `json:"product_id"`
}

// ValidateLocalItems rejects a local snapshot before anything is written.
func ValidateLocalItems(items []LocalItem, maxItems int) error {
	if maxItems > 0 && len(items) > maxItems {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("local cart exceeds %d items", maxItems))
	}
	for i, item := range items {
		err := validateItemInput(ItemInput{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			SelectedOptions: item.SelectedOptions,
			UnitPrice:       item.UnitPrice,
		})
		if err != nil {
			typed := pkgerrors.As(err)
			return pkgerrors.New(pkgerrors.CodeValidation, typed.Message()).
				WithDetails(map[string]any{"item_index": i})
		}
	}
	return nil
}

// mergeLocal folds local into the user's persisted cart through repo. Callers
// run it inside a transaction: on error nothing it wrote should be committed.
// Identical lines have their quantities summed, never overwritten; local lines
// are processed in their original order.
func mergeLocal(ctx context.Context, repo *Repository, userID int64, local []LocalItem) (*MergeResult, error) {
	cart, err := repo.EnsureCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	existing, err := repo.ListItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}

	result := &MergeResult{CartID: cart.ID}
	for i, item := range local {
		id := item.identity()
		if idx := findPersisted(existing, id); idx >= 0 {
			err = repo.incrementQuantity(ctx, &existing[idx], item.Quantity)
			if err == nil {
				result.Updated++
			}
		} else {
			row := models.CartItem{
				CartID:          cart.ID,
				ProductID:       item.ProductID,
				Quantity:        item.Quantity,
				SelectedOptions: normalizeOptions(item.SelectedOptions),
				UnitPrice:       item.UnitPrice,
			}
			err = repo.insertItem(ctx, &row)
			if err == nil {
				existing = append(existing, row)
				result.Inserted++
			}
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePartialMerge, err, "merge cart item").
				WithDetails(MergeFailure{ItemIndex: i, ProductID: item.ProductID})
		}
		result.Quantity += item.Quantity
	}

	if len(local) > 0 {
		if err := repo.touchCart(ctx, cart.ID); err != nil {
			return nil, err
		}
	}
	return result, nil
}
