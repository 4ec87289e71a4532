package models

import (
	"time"

	"github.com/persiashop/storefront-backend/pkg/types"
)

// Cart is the persisted cart of one user. The user_id unique constraint is what
// keeps concurrent lazy creation down to a single row.
type Cart struct {
	ID        int64      `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64      `gorm:"column:user_id;not null;uniqueIndex:carts_user_id_key"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem is one line of a persisted cart. There is deliberately no storage-level
// uniqueness on (cart_id, product_id, selected_options).
type CartItem struct {
	ID              int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	CartID          int64                 `gorm:"column:cart_id;not null;index"`
	ProductID       int64                 `gorm:"column:product_id;not null;index"`
	Quantity        int                   `gorm:"column:quantity;not null;default:1"`
	SelectedOptions types.SelectedOptions `gorm:"column:selected_options;type:jsonb;serializer:json"`
	UnitPrice       int64                 `gorm:"column:unit_price;not null"`
	Product         *Product              `gorm:"foreignKey:ProductID"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
