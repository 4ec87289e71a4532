package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/persiashop/storefront-backend/pkg/db"
	"github.com/persiashop/storefront-backend/pkg/db/models"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/types"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const cartUserConstraint = "carts_user_id_key"

// ItemInput is a line to add to a persisted cart.
type ItemInput struct {
	ProductID       int64
	Quantity        int
	SelectedOptions types.SelectedOptions
	UnitPrice       int64
	// MaxLineQuantity caps the line the add produces when positive.
	MaxLineQuantity int
}

// UpdateResult reports what UpdateItem did. Item is nil when the row was deleted.
type UpdateResult struct {
	Item    *models.CartItem `json:"item,omitempty"`
	Deleted bool             `json:"deleted"`
}

// Repository is the persisted cart store. Every item mutation checks that the
// item belongs to a cart owned by the calling user.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository binds the repository to the provided GORM handle.
func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn, now: time.Now}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx, now: r.now}
}

// GetCart returns the user's cart with items and their product projection, or
// nil when the user has never written to a cart.
func (r *Repository) GetCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(q *gorm.DB) *gorm.DB {
			return q.Order("cart_items.id ASC")
		}).
		Preload("Items.Product", func(q *gorm.DB) *gorm.DB {
			return q.Select("id", "name", "slug", "image_url", "base_price")
		}).
		Where("user_id = ?", userID).
		First(&cart).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return &cart, nil
}

// EnsureCart returns the user's cart, creating it if needed. Concurrent callers
// race on the user_id unique constraint; the loser re-reads the winner's row.
func (r *Repository) EnsureCart(ctx context.Context, userID int64) (*models.Cart, error) {
	if userID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if cart, err := r.findCart(ctx, userID); err != nil || cart != nil {
		return cart, err
	}

	cart := models.Cart{UserID: userID}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&cart)
	if res.Error != nil && !db.IsUniqueViolation(res.Error, cartUserConstraint) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "create cart")
	}
	if res.Error == nil && res.RowsAffected == 1 && cart.ID != 0 {
		return &cart, nil
	}

	existing, err := r.findCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "cart vanished after conflicting create")
	}
	return existing, nil
}

func (r *Repository) findCart(ctx context.Context, userID int64) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return &cart, nil
}

// ListItems returns the items of cartID in insertion order.
func (r *Repository) ListItems(ctx context.Context, cartID int64) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	return items, nil
}

// AddItem adds quantity to the identical line of the user's cart or inserts a
// new line. The scan and write share one transaction so a failure cannot leave
// two rows with the same identity.
func (r *Repository) AddItem(ctx context.Context, userID int64, input ItemInput) (*models.CartItem, error) {
	if err := validateItemInput(input); err != nil {
		return nil, err
	}

	var result *models.CartItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		scoped := r.WithTx(tx)
		cart, err := scoped.EnsureCart(ctx, userID)
		if err != nil {
			return err
		}

		var candidates []models.CartItem
		if err := tx.Where("cart_id = ? AND product_id = ?", cart.ID, input.ProductID).
			Order("id ASC").
			Find(&candidates).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scan cart items")
		}

		id := Identity{ProductID: input.ProductID, Options: input.SelectedOptions}
		if idx := findPersisted(candidates, id); idx >= 0 {
			existing := candidates[idx]
			if err := checkLineQuantity(existing.Quantity+input.Quantity, input.MaxLineQuantity); err != nil {
				return err
			}
			if err := scoped.incrementQuantity(ctx, &existing, input.Quantity); err != nil {
				return err
			}
			result = &existing
			return nil
		}

		item := models.CartItem{
			CartID:          cart.ID,
			ProductID:       input.ProductID,
			Quantity:        input.Quantity,
			SelectedOptions: normalizeOptions(input.SelectedOptions),
			UnitPrice:       input.UnitPrice,
		}
		if err := scoped.insertItem(ctx, &item); err != nil {
			return err
		}
		result = &item
		return nil
	})
	if err != nil {
		return nil, asTyped(err, "add cart item")
	}
	return result, nil
}

// UpdateItem sets the quantity of an owned item. A quantity of zero or less
// deletes the row instead.
func (r *Repository) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*UpdateResult, error) {
	item, err := r.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	if quantity <= 0 {
		if err := r.db.WithContext(ctx).Delete(&models.CartItem{}, item.ID).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
		}
		return &UpdateResult{Deleted: true}, nil
	}

	now := r.now().UTC()
	if err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{"quantity": quantity, "updated_at": now}).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	item.Quantity = quantity
	item.UpdatedAt = now
	return &UpdateResult{Item: item}, nil
}

// ItemQuantity returns the stored quantity of an owned item.
func (r *Repository) ItemQuantity(ctx context.Context, userID, itemID int64) (int, error) {
	item, err := r.ownedItem(ctx, userID, itemID)
	if err != nil {
		return 0, err
	}
	return item.Quantity, nil
}

// RemoveItem deletes an owned item.
func (r *Repository) RemoveItem(ctx context.Context, userID, itemID int64) error {
	item, err := r.ownedItem(ctx, userID, itemID)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&models.CartItem{}, item.ID).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	return nil
}

// ClearCart deletes every item of the user's cart. The cart row itself stays.
func (r *Repository) ClearCart(ctx context.Context, userID int64) error {
	cart, err := r.findCart(ctx, userID)
	if err != nil || cart == nil {
		return err
	}
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cart.ID).
		Delete(&models.CartItem{}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (r *Repository) ownedItem(ctx context.Context, userID, itemID int64) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("cart_items.id = ? AND carts.user_id = ?", itemID, userID).
		First(&item).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}
	return &item, nil
}

// incrementQuantity adds delta in SQL so concurrent adds are not lost.
func (r *Repository) incrementQuantity(ctx context.Context, item *models.CartItem, delta int) error {
	now := r.now().UTC()
	if err := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": now,
		}).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment cart item")
	}
	item.Quantity += delta
	item.UpdatedAt = now
	return nil
}

func (r *Repository) insertItem(ctx context.Context, item *models.CartItem) error {
	if err := r.db.WithContext(ctx).Omit("Product").Create(item).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert cart item")
	}
	return nil
}

// touchCart bumps the cart's updated_at after a merge.
func (r *Repository) touchCart(ctx context.Context, cartID int64) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("updated_at", r.now().UTC()).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "touch cart")
	}
	return nil
}

func validateItemInput(input ItemInput) error {
	if input.ProductID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity < 1 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.UnitPrice < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unit price must be non-negative")
	}
	for _, opt := range input.SelectedOptions {
		if opt.OptionGroupID <= 0 || opt.OptionID <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "selected options must reference option groups and options")
		}
	}
	return nil
}

func checkLineQuantity(quantity, limit int) error {
	if limit > 0 && quantity > limit {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("line quantity would reach %d, at most %d allowed", quantity, limit))
	}
	return nil
}

// normalizeOptions stores an empty array rather than null for option-less lines.
func normalizeOptions(opts types.SelectedOptions) types.SelectedOptions {
	if opts == nil {
		return types.SelectedOptions{}
	}
	return opts.Clone()
}

func asTyped(err error, message string) error {
	var typed *pkgerrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message)
}
