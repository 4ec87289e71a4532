package users

import (
	"time"

	"github.com/persiashop/storefront-backend/pkg/db/models"
)

// UserDTO is the public shape of a storefront customer.
type UserDTO struct {
	ID                int64     `json:"id"`
	PhoneNumber       string    `json:"phone_number"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	IsProfileComplete bool      `json:"is_profile_complete"`
	CreatedAt         time.Time `json:"created_at"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	dto := &UserDTO{
		ID:                u.ID,
		PhoneNumber:       u.PhoneNumber,
		IsProfileComplete: u.IsProfileComplete,
		CreatedAt:         u.CreatedAt,
	}
	if u.FirstName != nil {
		dto.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		dto.LastName = *u.LastName
	}
	return dto
}
