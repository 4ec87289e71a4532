package catalog

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/persiashop/storefront-backend/pkg/db"
	"github.com/persiashop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/pagination"
	"github.com/persiashop/storefront-backend/pkg/types"
)

// Service is the read side of the catalog used by product pages, cart pricing
// and order snapshots.
type Service interface {
	GetProduct(ctx context.Context, id int64) (*ProductDTO, error)
	ListProducts(ctx context.Context, subcategoryID int64, params pagination.Params) (*ProductList, error)
	SearchProducts(ctx context.Context, term string, params pagination.Params) (*ProductList, error)
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	ListSubcategories(ctx context.Context, categoryID int64) ([]SubcategoryDTO, error)
	Breadcrumb(ctx context.Context, subcategoryID int64) (*BreadcrumbDTO, error)
	PriceFor(ctx context.Context, productID int64, selected types.SelectedOptions) (int64, error)
	OptionLabels(ctx context.Context, selected types.SelectedOptions) ([]types.LabeledOption, error)
}

const maxSearchRunes = 100

type repository interface {
	FindActiveProduct(ctx context.Context, id int64) (*models.Product, error)
	ListActiveProducts(ctx context.Context, filter ListFilter) ([]models.Product, error)
	FindOptions(ctx context.Context, optionIDs []int64) ([]OptionRow, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListSubcategories(ctx context.Context, categoryID int64) ([]models.Subcategory, error)
	FindBreadcrumb(ctx context.Context, subcategoryID int64) (*BreadcrumbRow, error)
}

type service struct {
	repo repository
}

// NewService builds the catalog service.
func NewService(repo repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProduct(ctx context.Context, id int64) (*ProductDTO, error) {
	product, err := s.loadActive(ctx, id)
	if err != nil {
		return nil, err
	}
	return productFromModel(product), nil
}

func (s *service) ListProducts(ctx context.Context, subcategoryID int64, params pagination.Params) (*ProductList, error) {
	return s.listProducts(ctx, ListFilter{SubcategoryID: subcategoryID}, params)
}

// SearchProducts pages through active products whose names contain term.
func (s *service) SearchProducts(ctx context.Context, term string, params pagination.Params) (*ProductList, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is required")
	}
	if utf8.RuneCountInString(term) > maxSearchRunes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query is too long")
	}
	return s.listProducts(ctx, ListFilter{Search: term}, params)
}

func (s *service) listProducts(ctx context.Context, filter ListFilter, params pagination.Params) (*ProductList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	filter.Limit = limit + 1
	if cursor != nil {
		filter.CursorCreated = &cursor.CreatedAt
		filter.CursorID = cursor.ID
	}

	rows, err := s.repo.ListActiveProducts(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	list := &ProductList{Products: make([]ProductSummaryDTO, 0, len(rows))}
	rows, list.NextCursor = pagination.Trim(rows, limit, productCursor)
	for _, row := range rows {
		list.Products = append(list.Products, summaryFromModel(row))
	}
	return list, nil
}

// PriceFor returns the base price plus the modifiers of the selected options.
// Option ids the catalog does not know contribute nothing.
func (s *service) PriceFor(ctx context.Context, productID int64, selected types.SelectedOptions) (int64, error) {
	product, err := s.loadActive(ctx, productID)
	if err != nil {
		return 0, err
	}

	price := product.BasePrice
	if len(selected) == 0 {
		return price, nil
	}
	rows, err := s.repo.FindOptions(ctx, selected.OptionIDs())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load options")
	}
	modifiers := make(map[int64]int64, len(rows))
	for _, row := range rows {
		if row.ProductID == productID {
			modifiers[row.OptionID] = row.PriceModifier
		}
	}
	for _, opt := range selected {
		price += modifiers[opt.OptionID]
	}
	if price < 0 {
		price = 0
	}
	return price, nil
}

// OptionLabels resolves display names for the selected options, preserving
// their order. Unknown options keep their ids with empty names.
func (s *service) OptionLabels(ctx context.Context, selected types.SelectedOptions) ([]types.LabeledOption, error) {
	labels := make([]types.LabeledOption, 0, len(selected))
	if len(selected) == 0 {
		return labels, nil
	}
	rows, err := s.repo.FindOptions(ctx, selected.OptionIDs())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load option labels")
	}
	byID := make(map[int64]OptionRow, len(rows))
	for _, row := range rows {
		byID[row.OptionID] = row
	}
	for _, opt := range selected {
		label := types.LabeledOption{OptionGroupID: opt.OptionGroupID, OptionID: opt.OptionID}
		if row, ok := byID[opt.OptionID]; ok {
			label.OptionGroupName = row.OptionGroupName
			label.OptionName = row.OptionName
		}
		labels = append(labels, label)
	}
	return labels, nil
}

func (s *service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, c := range rows {
		out = append(out, CategoryDTO{ID: c.ID, Name: c.Name, Slug: c.Slug})
	}
	return out, nil
}

func (s *service) ListSubcategories(ctx context.Context, categoryID int64) ([]SubcategoryDTO, error) {
	if categoryID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category id is required")
	}
	rows, err := s.repo.ListSubcategories(ctx, categoryID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subcategories")
	}
	out := make([]SubcategoryDTO, 0, len(rows))
	for _, sub := range rows {
		out = append(out, SubcategoryDTO{ID: sub.ID, CategoryID: sub.CategoryID, Name: sub.Name, Slug: sub.Slug})
	}
	return out, nil
}

// Breadcrumb names the category path of a subcategory for page headers.
func (s *service) Breadcrumb(ctx context.Context, subcategoryID int64) (*BreadcrumbDTO, error) {
	if subcategoryID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subcategory id is required")
	}
	row, err := s.repo.FindBreadcrumb(ctx, subcategoryID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subcategory not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load breadcrumb")
	}
	return &BreadcrumbDTO{
		Category:    CategoryDTO{ID: row.CategoryID, Name: row.CategoryName, Slug: row.CategorySlug},
		Subcategory: SubcategoryDTO{ID: row.SubcategoryID, CategoryID: row.CategoryID, Name: row.SubcategoryName, Slug: row.SubcategorySlug},
	}, nil
}

func (s *service) loadActive(ctx context.Context, id int64) (*models.Product, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.repo.FindActiveProduct(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func productCursor(p models.Product) pagination.Cursor {
	return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
}
