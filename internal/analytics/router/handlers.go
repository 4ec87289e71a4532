package router

import (
	"fmt"

	gcpbigquery "cloud.google.com/go/bigquery"

	"github.com/persiashop/storefront-backend/internal/analytics/types"
	"github.com/persiashop/storefront-backend/pkg/bigquery"
	"github.com/persiashop/storefront-backend/pkg/outbox/payloads"
)

type cartMergedHandler struct{}

func (cartMergedHandler) Row(_ types.Envelope, payload any) (bigquery.EventRow, error) {
	event, ok := payload.(*payloads.CartMergedEvent)
	if !ok {
		return bigquery.EventRow{}, fmt.Errorf("invalid payload for cart_merged")
	}
	return bigquery.EventRow{
		UserID:   nullInt(event.UserID),
		Quantity: nullInt(int64(event.Quantity)),
	}, nil
}

type orderCreatedHandler struct{}

func (orderCreatedHandler) Row(_ types.Envelope, payload any) (bigquery.EventRow, error) {
	event, ok := payload.(*payloads.OrderCreatedEvent)
	if !ok {
		return bigquery.EventRow{}, fmt.Errorf("invalid payload for order_created")
	}
	return bigquery.EventRow{
		UserID:   nullInt(event.UserID),
		Quantity: nullInt(int64(event.ItemCount)),
		Amount:   nullInt(event.TotalAmount),
	}, nil
}

type orderStatusChangedHandler struct{}

func (orderStatusChangedHandler) Row(_ types.Envelope, payload any) (bigquery.EventRow, error) {
	event, ok := payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		return bigquery.EventRow{}, fmt.Errorf("invalid payload for order_status_changed")
	}
	return bigquery.EventRow{
		UserID: nullInt(event.UserID),
		Amount: nullInt(event.TotalAmount),
	}, nil
}

func nullInt(v int64) gcpbigquery.NullInt64 {
	return gcpbigquery.NullInt64{Int64: v, Valid: true}
}
