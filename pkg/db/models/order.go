package models

import (
	"time"

	"github.com/persiashop/storefront-backend/pkg/enums"
	"github.com/persiashop/storefront-backend/pkg/types"
)

// Order is placed from a persisted cart and keeps its own copy of every line.
type Order struct {
	ID              int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	UserID          int64                 `gorm:"column:user_id;not null;index"`
	Status          enums.OrderStatus     `gorm:"column:status;type:varchar(20);not null;default:'pending'"`
	TotalAmount     int64                 `gorm:"column:total_amount;not null"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	Notes           *string               `gorm:"column:notes"`
	Items           []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

type OrderItem struct {
	ID              int64                 `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID         int64                 `gorm:"column:order_id;not null;index"`
	ProductID       int64                 `gorm:"column:product_id;not null"`
	ProductName     string                `gorm:"column:product_name;type:varchar(200);not null"`
	Quantity        int                   `gorm:"column:quantity;not null"`
	UnitPrice       int64                 `gorm:"column:unit_price;not null"`
	SelectedOptions []types.LabeledOption `gorm:"column:selected_options;type:jsonb;serializer:json"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
}
