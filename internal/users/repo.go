package users

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/persiashop/storefront-backend/pkg/db"
	"github.com/persiashop/storefront-backend/pkg/db/models"
)

const phoneUniqueConstraint = "users_phone_number_key"

// Repository exposes user and verification code persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByPhone returns gorm.ErrRecordNotFound when no user owns phone.
func (r *Repository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("phone_number = ?", phone).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by id.
func (r *Repository) FindByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreateByPhone returns the user for phone, creating one on first login.
// created reports whether this call inserted the row. A concurrent insert of
// the same phone is resolved by re-reading the winner.
func (r *Repository) GetOrCreateByPhone(ctx context.Context, phone string) (user *models.User, created bool, err error) {
	user, err = r.FindByPhone(ctx, phone)
	if err == nil {
		return user, false, nil
	}
	if !db.IsNotFound(err) {
		return nil, false, err
	}

	user = &models.User{PhoneNumber: phone}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if db.IsUniqueViolation(err, phoneUniqueConstraint) {
			existing, findErr := r.FindByPhone(ctx, phone)
			return existing, false, findErr
		}
		return nil, false, err
	}
	return user, true, nil
}

// UpdateProfile sets the user's names and marks the profile complete.
func (r *Repository) UpdateProfile(ctx context.Context, id int64, firstName, lastName string) (*models.User, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"first_name":          firstName,
			"last_name":           lastName,
			"is_profile_complete": true,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.FindByID(ctx, id)
}

// CreateVerificationCode stores a hashed code for phone.
func (r *Repository) CreateVerificationCode(ctx context.Context, phone, codeHash string, expiresAt time.Time) (*models.VerificationCode, error) {
	code := &models.VerificationCode{
		PhoneNumber: phone,
		CodeHash:    codeHash,
		ExpiresAt:   expiresAt.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(code).Error; err != nil {
		return nil, err
	}
	return code, nil
}

// DeleteUnusedCodes removes every outstanding code for phone so only the
// newest request can be redeemed.
func (r *Repository) DeleteUnusedCodes(ctx context.Context, phone string) error {
	return r.db.WithContext(ctx).
		Where("phone_number = ? AND is_used = ?", phone, false).
		Delete(&models.VerificationCode{}).Error
}

// LatestActiveCode returns the newest unused, unexpired code for phone.
func (r *Repository) LatestActiveCode(ctx context.Context, phone string, now time.Time) (*models.VerificationCode, error) {
	var code models.VerificationCode
	err := r.db.WithContext(ctx).
		Where("phone_number = ? AND is_used = ? AND expires_at > ?", phone, false, now.UTC()).
		Order("created_at DESC").
		Order("id DESC").
		First(&code).Error
	if err != nil {
		return nil, err
	}
	return &code, nil
}

// MarkCodeUsed consumes a code. It fails with gorm.ErrRecordNotFound when the
// code was already used, so two concurrent verifications cannot both succeed.
func (r *Repository) MarkCodeUsed(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.VerificationCode{}).
		Where("id = ? AND is_used = ?", id, false).
		Update("is_used", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// PurgeCodes deletes codes that expired before expiredBefore and used codes
// created before usedBefore. It returns the number of rows removed.
func (r *Repository) PurgeCodes(ctx context.Context, expiredBefore, usedBefore time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ? OR (is_used = ? AND created_at < ?)", expiredBefore.UTC(), true, usedBefore.UTC()).
		Delete(&models.VerificationCode{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// IsNotFound reports whether err means the requested row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
