package cart

import (
	"sort"

	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/types"
)

// Identity is what makes two cart lines "the same line": the product plus the
// unordered set of selected options. Quantity and price play no part.
type Identity struct {
	ProductID int64
	Options   types.SelectedOptions
}

// SameItem is the only equality policy for cart lines. Every add, update,
// remove and merge path goes through it; options are never compared as
// serialized strings.
func SameItem(a, b Identity) bool {
	if a.ProductID != b.ProductID {
		return false
	}
	if len(a.Options) == 0 && len(b.Options) == 0 {
		return true
	}
	if len(a.Options) != len(b.Options) {
		return false
	}

	left := sortedOptions(a.Options)
	right := sortedOptions(b.Options)
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	return true
}

func sortedOptions(opts types.SelectedOptions) types.SelectedOptions {
	out := opts.Clone()
	sort.Slice(out, func(i, j int) bool {
		if out[i].OptionGroupID != out[j].OptionGroupID {
			return out[i].OptionGroupID < out[j].OptionGroupID
		}
		return out[i].OptionID < out[j].OptionID
	})
	return out
}

func identityOf(item models.CartItem) Identity {
	return Identity{ProductID: item.ProductID, Options: item.SelectedOptions}
}

// findPersisted returns the index of the persisted line matching id, or -1.
func findPersisted(items []models.CartItem, id Identity) int {
	for i := range items {
		if SameItem(identityOf(items[i]), id) {
			return i
		}
	}
	return -1
}
