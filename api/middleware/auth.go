package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/persiashop/storefront-backend/api/responses"
	pkgAuth "github.com/persiashop/storefront-backend/pkg/auth"
	"github.com/persiashop/storefront-backend/pkg/auth/session"
	"github.com/persiashop/storefront-backend/pkg/config"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

// Auth admits requests carrying a valid, unrevoked access token and puts the
// user and access id on the context. A nil verifier skips the revocation check.
func Auth(cfg config.JWTConfig, verifier session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := authenticate(r.Context(), cfg, verifier, BearerToken(r))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			noteUser(r.Context(), claims.UserID)
			ctx := WithAccessID(WithUserID(r.Context(), claims.UserID), claims.ID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, cfg config.JWTConfig, verifier session.AccessSessionChecker, token string) (*pkgAuth.AccessTokenClaims, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	claims, err := pkgAuth.ParseAccessToken(cfg, token)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	case claims.ID == "" || claims.UserID <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	case verifier == nil:
		return claims, nil
	}

	// logout deletes the access session, so a still-unexpired token stops working
	live, err := verifier.HasSession(ctx, claims.ID)
	switch {
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
	case !live:
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable")
	}
	return claims, nil
}

// BearerToken extracts the token from the Authorization header. A bare token
// without the Bearer scheme is accepted too.
func BearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		return strings.TrimSpace(token)
	}
	return raw
}
