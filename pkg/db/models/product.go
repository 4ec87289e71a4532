package models

import "time"

// Category is a top-level catalog node; subcategories hang off it.
type Category struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;type:varchar(100);not null"`
	Slug      string    `gorm:"column:slug;type:varchar(100);not null;uniqueIndex"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

type Subcategory struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	CategoryID int64     `gorm:"column:category_id;not null;index"`
	Name       string    `gorm:"column:name;type:varchar(100);not null"`
	Slug       string    `gorm:"column:slug;type:varchar(100);not null;uniqueIndex"`
	IsActive   bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Product is a catalog entry. Prices are integer minor currency units.
type Product struct {
	ID            int64         `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string        `gorm:"column:name;type:varchar(200);not null"`
	Slug          string        `gorm:"column:slug;type:varchar(200);not null"`
	Description   *string       `gorm:"column:description"`
	ImageURL      *string       `gorm:"column:image_url;type:varchar(500)"`
	SKU           *string       `gorm:"column:sku;type:varchar(50);uniqueIndex"`
	BasePrice     int64         `gorm:"column:base_price;not null"`
	SubcategoryID int64         `gorm:"column:subcategory_id;not null;index"`
	IsActive      bool          `gorm:"column:is_active;not null;default:true"`
	OptionGroups  []OptionGroup `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

// OptionGroup is one configuration axis of a product, e.g. RAM or colour.
type OptionGroup struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name       string    `gorm:"column:name;type:varchar(50);not null"`
	ProductID  int64     `gorm:"column:product_id;not null;index"`
	IsRequired bool      `gorm:"column:is_required;not null;default:false"`
	Options    []Option  `gorm:"foreignKey:OptionGroupID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// Option is a concrete choice inside an OptionGroup. PriceModifier may be negative.
type Option struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string    `gorm:"column:name;type:varchar(50);not null"`
	OptionGroupID int64     `gorm:"column:option_group_id;not null;index"`
	PriceModifier int64     `gorm:"column:price_modifier;not null;default:0"`
	IsDefault     bool      `gorm:"column:is_default;not null;default:false"`
	IsAvailable   bool      `gorm:"column:is_available;not null;default:true"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}
