package catalog

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/persiashop/storefront-backend/pkg/db/models"
)

// OptionRow is an option joined with its group, as read for pricing and labels.
type OptionRow struct {
	OptionID        int64
	OptionName      string
	PriceModifier   int64
	IsAvailable     bool
	OptionGroupID   int64
	OptionGroupName string
	ProductID       int64
}

// BreadcrumbRow is a subcategory with its parent category.
type BreadcrumbRow struct {
	CategoryID      int64
	CategoryName    string
	CategorySlug    string
	SubcategoryID   int64
	SubcategoryName string
	SubcategorySlug string
}

// ListFilter narrows product listings.
type ListFilter struct {
	SubcategoryID int64
	// Search matches product names containing it, case-insensitively.
	Search        string
	CursorCreated *time.Time
	CursorID      int64
	Limit         int
}

// Repository reads the product catalog.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindActiveProduct loads an active product with its option groups and only
// the options that are currently available.
func (r *Repository) FindActiveProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("OptionGroups", func(db *gorm.DB) *gorm.DB {
			return db.Order("option_groups.id ASC")
		}).
		Preload("OptionGroups.Options", "is_available = ?", true, func(db *gorm.DB) *gorm.DB {
			return db.Order("options.id ASC")
		}).
		Where("id = ? AND is_active = ?", id, true).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindProducts loads the products with the given ids, active or not.
func (r *Repository) FindProducts(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// ListActiveProducts pages newest first by (created_at, id).
func (r *Repository) ListActiveProducts(ctx context.Context, filter ListFilter) ([]models.Product, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("is_active = ?", true)
	if filter.SubcategoryID > 0 {
		q = q.Where("subcategory_id = ?", filter.SubcategoryID)
	}
	if filter.Search != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(filter.Search))+"%")
	}
	if filter.CursorCreated != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", *filter.CursorCreated, *filter.CursorCreated, filter.CursorID)
	}

	var products []models.Product
	err := q.Order("created_at DESC").
		Order("id DESC").
		Limit(filter.Limit).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

// FindOptions loads options by id together with their group names.
func (r *Repository) FindOptions(ctx context.Context, optionIDs []int64) ([]OptionRow, error) {
	if len(optionIDs) == 0 {
		return nil, nil
	}
	var rows []OptionRow
	err := r.db.WithContext(ctx).
		Table("options AS o").
		Select(`o.id AS option_id,
		        o.name AS option_name,
		        o.price_modifier AS price_modifier,
		        o.is_available AS is_available,
		        g.id AS option_group_id,
		        g.name AS option_group_name,
		        g.product_id AS product_id`).
		Joins("JOIN option_groups AS g ON g.id = o.option_group_id").
		Where("o.id IN ?", optionIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ListCategories returns the active top-level categories by name.
func (r *Repository) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&categories).Error
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// ListSubcategories returns the active subcategories of one category by name.
func (r *Repository) ListSubcategories(ctx context.Context, categoryID int64) ([]models.Subcategory, error) {
	var subcategories []models.Subcategory
	err := r.db.WithContext(ctx).
		Where("category_id = ? AND is_active = ?", categoryID, true).
		Order("name ASC").
		Find(&subcategories).Error
	if err != nil {
		return nil, err
	}
	return subcategories, nil
}

// FindBreadcrumb loads a subcategory joined with its parent category.
func (r *Repository) FindBreadcrumb(ctx context.Context, subcategoryID int64) (*BreadcrumbRow, error) {
	var rows []BreadcrumbRow
	err := r.db.WithContext(ctx).
		Table("subcategories AS s").
		Select(`c.id AS category_id,
		        c.name AS category_name,
		        c.slug AS category_slug,
		        s.id AS subcategory_id,
		        s.name AS subcategory_name,
		        s.slug AS subcategory_slug`).
		Joins("JOIN categories AS c ON c.id = s.category_id").
		Where("s.id = ?", subcategoryID).
		Limit(1).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}
