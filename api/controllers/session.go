package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/persiashop/storefront-backend/api/controllers/endpoint"
	"github.com/persiashop/storefront-backend/api/middleware"
	"github.com/persiashop/storefront-backend/api/validators"
	"github.com/persiashop/storefront-backend/internal/users"
	pkgAuth "github.com/persiashop/storefront-backend/pkg/auth"
	"github.com/persiashop/storefront-backend/pkg/auth/session"
	"github.com/persiashop/storefront-backend/pkg/config"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

type sessionTokenRotator interface {
	Rotate(ctx context.Context, userID int64, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, userID int64, accessID string) error
	RevokeAll(ctx context.Context, userID int64) (int, error)
}

type currentUserLoader interface {
	CurrentUser(ctx context.Context, userID int64) (*users.UserDTO, error)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// accessClaims reads the bearer token without enforcing expiry so that an
// expired access token can still be refreshed or logged out.
func accessClaims(r *http.Request, cfg config.JWTConfig) (*pkgAuth.AccessTokenClaims, error) {
	token := middleware.BearerToken(r)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessTokenAllowExpired(cfg, token)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	case claims.ID == "" || claims.UserID <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}
	return claims, nil
}

// AuthLogout revokes the refresh mapping tied to the presented access token.
func AuthLogout(manager sessionTokenRotator, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, manager != nil, func(r *http.Request) (endpoint.Reply, error) {
		claims, err := accessClaims(r, cfg)
		if err != nil {
			return endpoint.Reply{}, err
		}
		if err := manager.Revoke(r.Context(), claims.UserID, claims.ID); err != nil {
			return endpoint.Reply{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke session")
		}
		return endpoint.OK(map[string]string{"status": "logged_out"}), nil
	})
}

// AuthLogoutAll revokes every session of the authenticated user, on every device.
func AuthLogoutAll(manager sessionTokenRotator, logg *logger.Logger) http.HandlerFunc {
	return endpoint.ForUser(logg, manager != nil, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		revoked, err := manager.RevokeAll(r.Context(), userID)
		if err != nil {
			return endpoint.Reply{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke sessions")
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "sessions_revoked", revoked), "auth.logout_all")
		}
		return endpoint.OK(map[string]any{"status": "logged_out", "sessions_revoked": revoked}), nil
	})
}

// AuthRefresh rotates the refresh token and issues a new access token. The
// profile flag is reloaded so a completed profile shows up without a new login.
func AuthRefresh(manager sessionTokenRotator, loader currentUserLoader, cfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, manager != nil, func(r *http.Request) (endpoint.Reply, error) {
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Reply{}, err
		}
		claims, err := accessClaims(r, cfg)
		if err != nil {
			return endpoint.Reply{}, err
		}

		accessID, refresh, err := manager.Rotate(r.Context(), claims.UserID, claims.ID, body.RefreshToken)
		switch {
		case errors.Is(err, session.ErrInvalidRefreshToken):
			return endpoint.Reply{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid refresh token")
		case err != nil:
			return endpoint.Reply{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rotate session")
		}

		access, err := pkgAuth.MintAccessToken(cfg, time.Now().UTC(), refreshedPayload(r.Context(), loader, claims, accessID))
		if err != nil {
			return endpoint.Reply{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint jwt")
		}
		return endpoint.OK(refreshResponse{AccessToken: access, RefreshToken: refresh}), nil
	})
}

// refreshedPayload carries the old claims forward, preferring the stored user
// when it can be loaded.
func refreshedPayload(ctx context.Context, loader currentUserLoader, claims *pkgAuth.AccessTokenClaims, accessID string) pkgAuth.AccessTokenPayload {
	payload := pkgAuth.AccessTokenPayload{
		UserID:            claims.UserID,
		PhoneNumber:       claims.PhoneNumber,
		IsProfileComplete: claims.IsProfileComplete,
		JTI:               accessID,
	}
	if loader == nil {
		return payload
	}
	if user, err := loader.CurrentUser(ctx, claims.UserID); err == nil && user != nil {
		payload.PhoneNumber = user.PhoneNumber
		payload.IsProfileComplete = user.IsProfileComplete
	}
	return payload
}
