package cart

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/persiashop/storefront-backend/api/controllers/endpoint"
	"github.com/persiashop/storefront-backend/api/middleware"
	"github.com/persiashop/storefront-backend/api/validators"
	cartsvc "github.com/persiashop/storefront-backend/internal/cart"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

// CartFetch returns the caller's authoritative cart: the persisted cart when
// one exists, otherwise the guest cart named by the session header. The guest
// slot is only read when there is no persisted cart.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return forUser(svc, logg, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		view, err := svc.Active(r.Context(), userID, nil)
		if err != nil {
			return endpoint.Reply{}, err
		}
		if view.Source == cartsvc.SourcePersisted {
			return endpoint.OK(view), nil
		}
		guest, err := svc.OpenGuest(r.Context(), middleware.CartSessionFromContext(r.Context()))
		if err != nil {
			return endpoint.Reply{}, err
		}
		view, err = svc.Active(r.Context(), userID, guest)
		return endpoint.OK(view), err
	})
}

// CartAddItem adds a line to the persisted cart, folding it into an existing
// identical line.
func CartAddItem(svc cartsvc.Service, pricing Pricing, logg *logger.Logger) http.HandlerFunc {
	return forUser(svc, logg, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Reply{}, err
		}
		price, err := pricing.unitPrice(r.Context(), body.ProductID, body.SelectedOptions, body.UnitPrice)
		if err != nil {
			return endpoint.Reply{}, err
		}
		item, err := svc.AddItem(r.Context(), userID, cartsvc.ItemInput{
			ProductID:       body.ProductID,
			Quantity:        body.Quantity,
			SelectedOptions: body.SelectedOptions,
			UnitPrice:       price,
		})
		if err != nil {
			return endpoint.Reply{}, err
		}
		view, err := svc.Active(r.Context(), userID, nil)
		return endpoint.Created(itemResponse{Item: findViewItem(view, item.ID), Cart: view}), err
	})
}

// CartUpdateItem sets the quantity of a line. Zero deletes it.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return forUser(svc, logg, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		itemID, err := validators.ParsePathID(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			return endpoint.Reply{}, err
		}
		var body updateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Reply{}, err
		}
		result, err := svc.UpdateItem(r.Context(), userID, itemID, body.Quantity)
		if err != nil {
			return endpoint.Reply{}, err
		}
		view, err := svc.Active(r.Context(), userID, nil)
		resp := itemResponse{Deleted: result.Deleted, Cart: view}
		if result.Item != nil {
			resp.Item = findViewItem(view, result.Item.ID)
		}
		return endpoint.OK(resp), err
	})
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return forUser(svc, logg, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		itemID, err := validators.ParsePathID(chi.URLParam(r, "itemId"), "itemId")
		if err != nil {
			return endpoint.Reply{}, err
		}
		if err := svc.RemoveItem(r.Context(), userID, itemID); err != nil {
			return endpoint.Reply{}, err
		}
		view, err := svc.Active(r.Context(), userID, nil)
		return endpoint.OK(view), err
	})
}

// CartClear empties the persisted cart. The cart row itself is kept.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return forUser(svc, logg, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		return endpoint.NoContent(), svc.Clear(r.Context(), userID)
	})
}

// CartMerge folds a local cart into the persisted one. Items in the body are
// merged when present; otherwise the guest cart of the session is merged and
// cleared after the merge commits.
func CartMerge(svc cartsvc.Service, pricing Pricing, maxItems int, logg *logger.Logger) http.HandlerFunc {
	return forUser(svc, logg, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		var body mergeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil && !errors.Is(err, io.EOF) {
			return endpoint.Reply{}, err
		}

		var (
			result *cartsvc.MergeResult
			err    error
		)
		if len(body.Items) > 0 {
			local, convErr := pricing.toLocalItems(r.Context(), body.Items, maxItems)
			if convErr != nil {
				return endpoint.Reply{}, convErr
			}
			result, err = svc.Merge(r.Context(), userID, local)
		} else {
			guest, openErr := svc.OpenGuest(r.Context(), middleware.CartSessionFromContext(r.Context()))
			if openErr != nil {
				return endpoint.Reply{}, openErr
			}
			result, err = svc.MergeGuest(r.Context(), userID, guest)
		}
		if err != nil {
			return endpoint.Reply{}, err
		}
		view, err := svc.Active(r.Context(), userID, nil)
		return endpoint.OK(mergeResponse{Merge: result, Cart: view}), err
	})
}
