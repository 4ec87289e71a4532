package auth

import (
	"time"

	"github.com/persiashop/storefront-backend/internal/users"
)

// RequestCodeRequest asks for a one-time login code.
type RequestCodeRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=10,max=20"`
}

// RequestCodeResponse reports where the code went. Code is only set while SMS
// delivery is stubbed and the expose flag is on.
type RequestCodeResponse struct {
	PhoneNumber string    `json:"phone_number"`
	ExpiresAt   time.Time `json:"expires_at"`
	Code        string    `json:"code,omitempty"`
}

// VerifyCodeRequest redeems a code for a session.
type VerifyCodeRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required,min=10,max=20"`
	Code        string `json:"code" validate:"required,numeric"`
}

// LoginResponse contains the tokens and user produced by a successful verification.
type LoginResponse struct {
	AccessToken       string         `json:"access_token"`
	RefreshToken      string         `json:"refresh_token"`
	IsNewUser         bool           `json:"is_new_user"`
	IsProfileComplete bool           `json:"is_profile_complete"`
	User              *users.UserDTO `json:"user"`
}

// CompleteProfileRequest fills in the names collected after first login.
type CompleteProfileRequest struct {
	FirstName string `json:"first_name" validate:"required,min=2,max=100"`
	LastName  string `json:"last_name" validate:"required,min=2,max=100"`
}
