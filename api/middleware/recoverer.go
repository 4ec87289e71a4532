package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/persiashop/storefront-backend/api/responses"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

// Recoverer turns a handler panic into a 500 and logs it with the shopper the
// request belonged to. http.ErrAbortHandler is passed through untouched.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				ctx := r.Context()
				if logg != nil {
					fields := map[string]any{"panic": fmt.Sprint(rec)}
					if trace := traceFromContext(ctx); trace != nil {
						if trace.userID > 0 {
							fields["user_id"] = trace.userID
						}
						if trace.cartSession != "" {
							fields["cart_session"] = trace.cartSession
						}
					}
					ctx = logg.WithFields(ctx, fields)
					logg.Error(ctx, "panic.recovered", err)
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
