package cart

import (
	"net/http"

	"github.com/persiashop/storefront-backend/api/controllers/endpoint"
	"github.com/persiashop/storefront-backend/api/validators"
	cartsvc "github.com/persiashop/storefront-backend/internal/cart"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

// GuestFetch returns the anonymous cart of the session.
func GuestFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return forGuest(svc, logg, func(r *http.Request, guest *cartsvc.LocalStore) (endpoint.Reply, error) {
		view, err := svc.Active(r.Context(), 0, guest)
		return endpoint.OK(view), err
	})
}

// GuestAddItem adds a line to the anonymous cart. Prices come from the catalog
// unless client pricing is enabled.
func GuestAddItem(svc cartsvc.Service, pricing Pricing, logg *logger.Logger) http.HandlerFunc {
	return forGuest(svc, logg, func(r *http.Request, guest *cartsvc.LocalStore) (endpoint.Reply, error) {
		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Reply{}, err
		}
		price, err := pricing.unitPrice(r.Context(), body.ProductID, body.SelectedOptions, body.UnitPrice)
		if err != nil {
			return endpoint.Reply{}, err
		}
		view, err := svc.AddGuestItem(r.Context(), guest, cartsvc.LocalItem{
			ProductID:       body.ProductID,
			Quantity:        body.Quantity,
			SelectedOptions: body.SelectedOptions,
			UnitPrice:       price,
		})
		return endpoint.Created(view), err
	})
}

// GuestUpdateItem sets the quantity of the line matching product and options.
// Zero removes the line.
func GuestUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return forGuest(svc, logg, func(r *http.Request, guest *cartsvc.LocalStore) (endpoint.Reply, error) {
		var body guestItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Reply{}, err
		}
		view, err := svc.UpdateGuestItem(r.Context(), guest, body.ProductID, body.SelectedOptions, body.Quantity)
		return endpoint.OK(view), err
	})
}

func GuestRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return forGuest(svc, logg, func(r *http.Request, guest *cartsvc.LocalStore) (endpoint.Reply, error) {
		var body guestItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Reply{}, err
		}
		view, err := svc.RemoveGuestItem(r.Context(), guest, body.ProductID, body.SelectedOptions)
		return endpoint.OK(view), err
	})
}

func GuestClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return forGuest(svc, logg, func(r *http.Request, guest *cartsvc.LocalStore) (endpoint.Reply, error) {
		return endpoint.NoContent(), svc.ClearGuest(r.Context(), guest)
	})
}
