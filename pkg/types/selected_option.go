package types

// SelectedOption records the option picked inside one option group of a product.
type SelectedOption struct {
	OptionGroupID int64 `json:"option_group_id" validate:"required,gt=0"`
	OptionID      int64 `json:"option_id" validate:"required,gt=0"`
}

// SelectedOptions is stored as a jsonb array on cart items. Order carries no meaning.
type SelectedOptions []SelectedOption

// Clone returns an independent copy; nil stays nil.
func (s SelectedOptions) Clone() SelectedOptions {
	if s == nil {
		return nil
	}
	out := make(SelectedOptions, len(s))
	copy(out, s)
	return out
}

// OptionIDs lists the option ids in their stored order.
func (s SelectedOptions) OptionIDs() []int64 {
	ids := make([]int64, 0, len(s))
	for _, opt := range s {
		ids = append(ids, opt.OptionID)
	}
	return ids
}

// LabeledOption is the order-time snapshot of a selected option with display names.
type LabeledOption struct {
	OptionGroupID   int64  `json:"option_group_id"`
	OptionGroupName string `json:"option_group_name"`
	OptionID        int64  `json:"option_id"`
	OptionName      string `json:"option_name"`
}
