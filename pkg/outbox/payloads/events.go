package payloads

import (
	"time"

	"github.com/persiashop/storefront-backend/pkg/enums"
)

// CartMergedEvent is emitted once a guest cart has been folded into a user's cart.
type CartMergedEvent struct {
	CartID        int64     `json:"cart_id"`
	UserID        int64     `json:"user_id"`
	ItemsUpdated  int       `json:"items_updated"`
	ItemsInserted int       `json:"items_inserted"`
	Quantity      int       `json:"quantity"`
	MergedAt      time.Time `json:"merged_at"`
}

// OrderCreatedEvent is emitted when a cart is checked out into an order.
type OrderCreatedEvent struct {
	OrderID     int64             `json:"order_id"`
	UserID      int64             `json:"user_id"`
	Status      enums.OrderStatus `json:"status"`
	TotalAmount int64             `json:"total_amount"`
	ItemCount   int               `json:"item_count"`
	CreatedAt   time.Time         `json:"created_at"`
}

// OrderStatusChangedEvent is emitted when staff move an order to a new status.
type OrderStatusChangedEvent struct {
	OrderID     int64             `json:"order_id"`
	UserID      int64             `json:"user_id"`
	From        enums.OrderStatus `json:"from"`
	To          enums.OrderStatus `json:"to"`
	TotalAmount int64             `json:"total_amount"`
	ChangedBy   int64             `json:"changed_by"`
	ChangedAt   time.Time         `json:"changed_at"`
}
