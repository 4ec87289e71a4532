package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/persiashop/storefront-backend/api/controllers/endpoint"
	"github.com/persiashop/storefront-backend/api/validators"
	internalorders "github.com/persiashop/storefront-backend/internal/orders"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/pagination"
)

// Create turns the caller's cart into an order and empties the cart. The
// route is wrapped in the idempotency middleware, so a retried request
// replays the first order instead of placing a second.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.ForUser(logg, svc != nil, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		var body internalorders.CreateOrderInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Reply{}, err
		}
		order, err := svc.CreateOrder(r.Context(), userID, body)
		return endpoint.Created(order), err
	})
}

// List returns the caller's orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.ForUser(logg, svc != nil, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return endpoint.Reply{}, err
		}
		list, err := svc.ListOrders(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			return endpoint.Reply{}, err
		}
		return endpoint.Page(list.Orders, list.NextCursor, limit), nil
	})
}

func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.ForUser(logg, svc != nil, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		orderID, err := validators.ParsePathID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			return endpoint.Reply{}, err
		}
		order, err := svc.GetOrder(r.Context(), userID, orderID)
		return endpoint.OK(order), err
	})
}

type statusBody struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus lets staff move any order to a new status. The route sits
// behind RequireAdmin.
func UpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.ForUser(logg, svc != nil, func(r *http.Request, actorID int64) (endpoint.Reply, error) {
		orderID, err := validators.ParsePathID(chi.URLParam(r, "orderId"), "orderId")
		if err != nil {
			return endpoint.Reply{}, err
		}
		var body statusBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Reply{}, err
		}
		order, err := svc.UpdateStatus(r.Context(), actorID, orderID, body.Status)
		return endpoint.OK(order), err
	})
}
