package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/persiashop/storefront-backend/pkg/db/models"
	"github.com/persiashop/storefront-backend/pkg/enums"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	FindUserOrder(ctx context.Context, userID, orderID int64) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID int64, cursor *ListCursor, limit int) ([]models.Order, error)
	FindOrder(ctx context.Context, orderID int64) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID int64, from, to enums.OrderStatus, at time.Time) (bool, error)
}

// ListCursor positions a page strictly after (CreatedAt, ID) in newest-first order.
type ListCursor struct {
	CreatedAt time.Time
	ID        int64
}
