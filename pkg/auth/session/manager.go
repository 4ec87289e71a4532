// Package session stores refresh tokens in Redis, one per access token id (jti),
// with a per-user index so every session of a user can be revoked at once.
package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/persiashop/storefront-backend/pkg/config"
	pkgredis "github.com/persiashop/storefront-backend/pkg/redis"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errMissingAccessID     = errors.New("access id is required")
	errMissingUserID       = errors.New("user id is required")
)

// Store is the Redis surface the manager needs; *redis.Client satisfies it.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AddToSet(ctx context.Context, key string, ttl time.Duration, members ...string) error
	RemoveFromSet(ctx context.Context, key string, members ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
	AccessSessionKey(accessID string) string
	UserSessionsKey(userID int64) string
}

// AccessSessionChecker is the read-only view the auth middleware uses.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager requires the refresh TTL to outlive the access token TTL.
func NewManager(store Store, cfg config.JWTConfig) (*Manager, error) {
	if store == nil {
		return nil, errors.New("redis client is required")
	}
	refresh := cfg.RefreshTokenTTL()
	access := time.Duration(cfg.ExpirationMinutes) * time.Minute
	switch {
	case refresh <= 0:
		return nil, errors.New("refresh token ttl must be positive")
	case refresh <= access:
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", refresh, access)
	}
	return &Manager{store: store, ttl: refresh}, nil
}

// NewAccessID returns a fresh jti.
func NewAccessID() string {
	return uuid.NewString()
}

// Generate issues and stores a refresh token for accessID.
func (m *Manager) Generate(ctx context.Context, userID int64, accessID string) (string, error) {
	if blank(accessID) {
		return "", errMissingAccessID
	}
	if userID <= 0 {
		return "", errMissingUserID
	}
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	if err := m.store.Set(ctx, m.store.AccessSessionKey(accessID), token, m.ttl); err != nil {
		return "", err
	}
	if err := m.store.AddToSet(ctx, m.store.UserSessionsKey(userID), m.ttl, accessID); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate exchanges a valid refresh token for a new access id and refresh
// token. The old pair stops working; replaying it yields ErrInvalidRefreshToken.
func (m *Manager) Rotate(ctx context.Context, userID int64, oldAccessID, provided string) (string, string, error) {
	if blank(oldAccessID) || blank(provided) {
		return "", "", ErrInvalidRefreshToken
	}
	stored, err := m.store.Get(ctx, m.store.AccessSessionKey(oldAccessID))
	switch {
	case pkgredis.IsNil(err):
		return "", "", ErrInvalidRefreshToken
	case err != nil:
		return "", "", err
	case subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) != 1:
		return "", "", ErrInvalidRefreshToken
	}

	accessID := NewAccessID()
	token, err := m.Generate(ctx, userID, accessID)
	if err != nil {
		return "", "", err
	}
	if err := m.Revoke(ctx, userID, oldAccessID); err != nil {
		return "", "", err
	}
	return accessID, token, nil
}

// Revoke drops one session. userID may be 0 when only the jti is known.
func (m *Manager) Revoke(ctx context.Context, userID int64, accessID string) error {
	if blank(accessID) {
		return errMissingAccessID
	}
	if err := m.store.Del(ctx, m.store.AccessSessionKey(accessID)); err != nil {
		return err
	}
	if userID <= 0 {
		return nil
	}
	return m.store.RemoveFromSet(ctx, m.store.UserSessionsKey(userID), accessID)
}

// RevokeAll drops every indexed session of userID and returns how many there were.
func (m *Manager) RevokeAll(ctx context.Context, userID int64) (int, error) {
	if userID <= 0 {
		return 0, errMissingUserID
	}
	index := m.store.UserSessionsKey(userID)
	ids, err := m.store.SetMembers(ctx, index)
	if err != nil {
		return 0, err
	}
	keys := []string{index}
	for _, id := range ids {
		keys = append(keys, m.store.AccessSessionKey(id))
	}
	if err := m.store.Del(ctx, keys...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// HasSession reports whether accessID still has a live refresh token.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if blank(accessID) {
		return false, errMissingAccessID
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	if pkgredis.IsNil(err) {
		return false, nil
	}
	return err == nil, err
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
