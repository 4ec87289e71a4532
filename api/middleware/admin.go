package middleware

import (
	"net/http"
	"slices"

	"github.com/persiashop/storefront-backend/api/responses"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

// RequireAdmin admits only the configured staff user ids. It runs after Auth.
func RequireAdmin(adminIDs []int64, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := UserIDFromContext(r.Context())
			if userID <= 0 || !slices.Contains(adminIDs, userID) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
