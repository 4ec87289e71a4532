package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/persiashop/storefront-backend/api/middleware"
	internalorders "github.com/persiashop/storefront-backend/internal/orders"
	"github.com/persiashop/storefront-backend/pkg/enums"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/pagination"
)

type stubOrders struct {
	created   []internalorders.CreateOrderInput
	listed    pagination.Params
	createErr   error
	statusCalls []string
}

func (s *stubOrders) CreateOrder(_ context.Context, _ int64, input internalorders.CreateOrderInput) (*internalorders.OrderDTO, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, input)
	return &internalorders.OrderDTO{ID: 10, TotalAmount: 2000}, nil
}

func (s *stubOrders) ListOrders(_ context.Context, _ int64, params pagination.Params) (*internalorders.OrderList, error) {
	s.listed = params
	return &internalorders.OrderList{Orders: []internalorders.OrderDTO{{ID: 1}}, NextCursor: "next"}, nil
}

func (s *stubOrders) GetOrder(_ context.Context, userID, orderID int64) (*internalorders.OrderDTO, error) {
	if userID != 7 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return &internalorders.OrderDTO{ID: orderID}, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, actorID, orderID int64, status string) (*internalorders.OrderDTO, error) {
	s.statusCalls = append(s.statusCalls, fmt.Sprintf("%d:%d:%s", actorID, orderID, status))
	if status == "lost" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	return &internalorders.OrderDTO{ID: orderID, Status: enums.OrderStatus(status)}, nil
}

const validOrderBody = `{"shipping_address":{"first_name":"Sara","last_name":"Ahmadi","phone_number":"09121234567","province":"Tehran","city":"Tehran","address":"Valiasr Street, No 12","postal_code":"1234567890"}}`

func withUser(req *http.Request, userID int64) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func TestCreateOrder(t *testing.T) {
	svc := &stubOrders{}
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(validOrderBody)), 7)
	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.created) != 1 || svc.created[0].ShippingAddress.City != "Tehran" {
		t.Fatalf("unexpected input %+v", svc.created)
	}
}

func TestCreateOrderValidatesAddress(t *testing.T) {
	svc := &stubOrders{}
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"shipping_address":{"first_name":"S"}}`)), 7)
	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(svc.created) != 0 {
		t.Fatalf("service must not be called for an invalid body")
	}
}

func TestCreateOrderEmptyCart(t *testing.T) {
	svc := &stubOrders{createErr: pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")}
	req := withUser(httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(validOrderBody)), 7)
	rec := httptest.NewRecorder()
	Create(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListOrdersPassesCursor(t *testing.T) {
	svc := &stubOrders{}
	req := withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=5&cursor=abc", nil), 7)
	rec := httptest.NewRecorder()
	List(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.listed.Limit != 5 || svc.listed.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", svc.listed)
	}
	var payload struct {
		Meta struct {
			NextCursor string `json:"next_cursor"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Meta.NextCursor != "next" {
		t.Fatalf("expected next cursor, got %q", payload.Meta.NextCursor)
	}
}

func TestDetailEnforcesOwnership(t *testing.T) {
	svc := &stubOrders{}
	router := chi.NewRouter()
	router.Get("/api/v1/orders/{orderId}", Detail(svc, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders/3", nil), 8))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another user's order, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/v1/orders/3", nil), 7))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	svc := &stubOrders{}
	router := chi.NewRouter()
	router.Patch("/api/v1/admin/orders/{orderId}/status", UpdateStatus(svc, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/3/status", strings.NewReader(`{"status":"shipped"}`)), 1))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.statusCalls) != 1 || svc.statusCalls[0] != "1:3:shipped" {
		t.Fatalf("unexpected calls %v", svc.statusCalls)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/3/status", strings.NewReader(`{}`)), 1))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a missing status, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/3/status", strings.NewReader(`{"status":"lost"}`)), 1))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown status, got %d", rec.Code)
	}
}
