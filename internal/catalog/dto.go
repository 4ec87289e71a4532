package catalog

import (
	"time"

	"github.com/persiashop/storefront-backend/pkg/db/models"
)

// ProductDTO is the public product shape with its configurable options.
type ProductDTO struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Slug          string           `json:"slug"`
	Description   *string          `json:"description,omitempty"`
	ImageURL      *string          `json:"image_url,omitempty"`
	SKU           *string          `json:"sku,omitempty"`
	BasePrice     int64            `json:"base_price"`
	SubcategoryID int64            `json:"subcategory_id"`
	OptionGroups  []OptionGroupDTO `json:"option_groups"`
	CreatedAt     time.Time        `json:"created_at"`
}

type OptionGroupDTO struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	IsRequired bool        `json:"is_required"`
	Options    []OptionDTO `json:"options"`
}

type OptionDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	PriceModifier int64  `json:"price_modifier"`
	IsDefault     bool   `json:"is_default"`
}

// ProductSummaryDTO is the listing shape.
type ProductSummaryDTO struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	ImageURL  *string `json:"image_url,omitempty"`
	BasePrice int64   `json:"base_price"`
}

// ProductList is one page of products.
type ProductList struct {
	Products   []ProductSummaryDTO `json:"products"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

type CategoryDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type SubcategoryDTO struct {
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Slug       string `json:"slug"`
}

// BreadcrumbDTO is the category path of a subcategory.
type BreadcrumbDTO struct {
	Category    CategoryDTO    `json:"category"`
	Subcategory SubcategoryDTO `json:"subcategory"`
}

func productFromModel(p *models.Product) *ProductDTO {
	dto := &ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Slug:          p.Slug,
		Description:   p.Description,
		ImageURL:      p.ImageURL,
		SKU:           p.SKU,
		BasePrice:     p.BasePrice,
		SubcategoryID: p.SubcategoryID,
		OptionGroups:  make([]OptionGroupDTO, 0, len(p.OptionGroups)),
		CreatedAt:     p.CreatedAt,
	}
	for _, g := range p.OptionGroups {
		group := OptionGroupDTO{ID: g.ID, Name: g.Name, IsRequired: g.IsRequired, Options: make([]OptionDTO, 0, len(g.Options))}
		for _, o := range g.Options {
			group.Options = append(group.Options, OptionDTO{
				ID:            o.ID,
				Name:          o.Name,
				PriceModifier: o.PriceModifier,
				IsDefault:     o.IsDefault,
			})
		}
		dto.OptionGroups = append(dto.OptionGroups, group)
	}
	return dto
}

func summaryFromModel(p models.Product) ProductSummaryDTO {
	return ProductSummaryDTO{
		ID:        p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		ImageURL:  p.ImageURL,
		BasePrice: p.BasePrice,
	}
}
