package cart

import (
	"net/http"

	"github.com/persiashop/storefront-backend/api/controllers/endpoint"
	"github.com/persiashop/storefront-backend/api/middleware"
	cartsvc "github.com/persiashop/storefront-backend/internal/cart"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

type guestFunc func(r *http.Request, guest *cartsvc.LocalStore) (endpoint.Reply, error)

// forGuest runs fn against the anonymous cart of the X-Cart-Session header.
func forGuest(svc cartsvc.Service, logg *logger.Logger, fn guestFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			endpoint.Render(w, r, logg, endpoint.Reply{}, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		guest, err := svc.OpenGuest(r.Context(), middleware.CartSessionFromContext(r.Context()))
		if err != nil {
			endpoint.Render(w, r, logg, endpoint.Reply{}, err)
			return
		}
		rep, err := fn(r, guest)
		endpoint.Render(w, r, logg, rep, err)
	}
}

func forUser(svc cartsvc.Service, logg *logger.Logger, fn endpoint.UserFunc) http.HandlerFunc {
	return endpoint.ForUser(logg, svc != nil, fn)
}
