package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/persiashop/storefront-backend/pkg/logger"
)

// CartSessionHeader carries the guest cart session between the storefront and the API.
const CartSessionHeader = "X-Cart-Session"

// CartSession reads the guest cart session header. A missing or malformed
// value gets a fresh id, which is echoed back so the client can keep it.
func CartSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(CartSessionHeader))
			if _, err := uuid.Parse(sessionID); err != nil {
				sessionID = uuid.NewString()
			}
			w.Header().Set(CartSessionHeader, sessionID)

			noteCartSession(r.Context(), sessionID)
			ctx := WithCartSession(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithCartSession(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
