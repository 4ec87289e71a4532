package orders

import (
	"time"

	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/enums"
	"github.com/persiashop/storefront-backend/pkg/types"
)

// CreateOrderInput is the checkout payload.
type CreateOrderInput struct {
	ShippingAddress types.ShippingAddress `json:"shipping_address" validate:"required"`
	Notes           *string               `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// OrderDTO is the customer-facing order.
type OrderDTO struct {
	ID              int64                 `json:"id"`
	Status          enums.OrderStatus     `json:"status"`
	TotalAmount     int64                 `json:"total_amount"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	Notes           *string               `json:"notes,omitempty"`
	Items           []OrderItemDTO        `json:"items"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

type OrderItemDTO struct {
	ID              int64                 `json:"id"`
	ProductID       int64                 `json:"product_id"`
	ProductName     string                `json:"product_name"`
	Quantity        int                   `json:"quantity"`
	UnitPrice       int64                 `json:"unit_price"`
	LineTotal       int64                 `json:"line_total"`
	SelectedOptions []types.LabeledOption `json:"selected_options"`
}

// OrderList is one page of a user's orders.
type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func fromModel(o *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:              o.ID,
		Status:          o.Status,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		Items:           make([]OrderItemDTO, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	for _, item := range o.Items {
		opts := item.SelectedOptions
		if opts == nil {
			opts = []types.LabeledOption{}
		}
		dto.Items = append(dto.Items, OrderItemDTO{
			ID:              item.ID,
			ProductID:       item.ProductID,
			ProductName:     item.ProductName,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			LineTotal:       int64(item.Quantity) * item.UnitPrice,
			SelectedOptions: opts,
		})
	}
	return dto
}
