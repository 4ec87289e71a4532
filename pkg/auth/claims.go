package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID            int64
	PhoneNumber       string
	IsProfileComplete bool
	// JTI doubles as the refresh session id; a random one is generated when empty.
	JTI string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID            int64  `json:"user_id"`
	PhoneNumber       string `json:"phone_number"`
	IsProfileComplete bool   `json:"is_profile_complete"`
	jwt.RegisteredClaims
}
