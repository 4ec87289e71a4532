package cart

import (
	"testing"

	"github.com/persiashop/storefront-backend/pkg/types"
)

func opts(pairs ...int64) types.SelectedOptions {
	out := types.SelectedOptions{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, types.SelectedOption{OptionGroupID: pairs[i], OptionID: pairs[i+1]})
	}
	return out
}

func TestSameItem(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		a, b Identity
		want bool
	}{
		{"different products", Identity{ProductID: 1}, Identity{ProductID: 2}, false},
		{"option order ignored", Identity{1, opts(1, 10, 2, 20)}, Identity{1, opts(2, 20, 1, 10)}, true},
		{"empty equals nil", Identity{5, types.SelectedOptions{}}, Identity{5, nil}, true},
		{"different cardinality", Identity{1, opts(1, 10)}, Identity{1, opts(1, 10, 2, 20)}, false},
		{"same group different option", Identity{1, opts(1, 10)}, Identity{1, opts(1, 11)}, false},
		{"options versus none", Identity{1, opts(1, 10)}, Identity{1, nil}, false},
		{"two picks in one group stay distinct", Identity{1, opts(1, 10, 1, 11)}, Identity{1, opts(1, 10)}, false},
		{"two picks in one group reordered", Identity{1, opts(1, 11, 1, 10)}, Identity{1, opts(1, 10, 1, 11)}, true},
	}

	for _, tc := range cases {
		if got := SameItem(tc.a, tc.b); got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
		if got := SameItem(tc.b, tc.a); got != tc.want {
			t.Fatalf("%s: comparison is not symmetric", tc.name)
		}
	}
}

func TestSameItemReflexive(t *testing.T) {
	t.Parallel()

	for _, id := range []Identity{
		{ProductID: 3},
		{ProductID: 3, Options: opts(4, 40)},
		{ProductID: 3, Options: opts(9, 1, 2, 7, 5, 5)},
	} {
		if !SameItem(id, id) {
			t.Fatalf("expected %+v to equal itself", id)
		}
	}
}

func TestSameItemDoesNotReorderInput(t *testing.T) {
	t.Parallel()

	input := opts(2, 20, 1, 10)
	SameItem(Identity{1, input}, Identity{1, opts(1, 10, 2, 20)})
	if input[0].OptionGroupID != 2 {
		t.Fatalf("comparison must not sort the caller's slice in place")
	}
}
