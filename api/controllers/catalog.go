package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/persiashop/storefront-backend/api/controllers/endpoint"
	"github.com/persiashop/storefront-backend/api/validators"
	"github.com/persiashop/storefront-backend/internal/catalog"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/pagination"
)

// ListProducts pages through active products, optionally inside one
// subcategory. A q parameter searches product names across the catalog.
func ListProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, svc != nil, func(r *http.Request) (endpoint.Reply, error) {
		query := r.URL.Query()
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			return endpoint.Reply{}, err
		}
		var subcategoryID int64
		if raw := strings.TrimSpace(query.Get("subcategory_id")); raw != "" {
			if subcategoryID, err = validators.ParsePathID(raw, "subcategory_id"); err != nil {
				return endpoint.Reply{}, err
			}
		}

		params := pagination.Params{Limit: limit, Cursor: strings.TrimSpace(query.Get("cursor"))}
		var list *catalog.ProductList
		if term := strings.TrimSpace(query.Get("q")); term != "" {
			list, err = svc.SearchProducts(r.Context(), term, params)
		} else {
			list, err = svc.ListProducts(r.Context(), subcategoryID, params)
		}
		if err != nil {
			return endpoint.Reply{}, err
		}
		return endpoint.Page(list.Products, list.NextCursor, limit), nil
	})
}

// GetProduct returns one active product with its option groups.
func GetProduct(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, svc != nil, func(r *http.Request) (endpoint.Reply, error) {
		id, err := validators.ParsePathID(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			return endpoint.Reply{}, err
		}
		product, err := svc.GetProduct(r.Context(), id)
		return endpoint.OK(product), err
	})
}

func ListCategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, svc != nil, func(r *http.Request) (endpoint.Reply, error) {
		categories, err := svc.ListCategories(r.Context())
		return endpoint.OK(categories), err
	})
}

func ListSubcategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, svc != nil, func(r *http.Request) (endpoint.Reply, error) {
		categoryID, err := validators.ParsePathID(chi.URLParam(r, "categoryId"), "categoryId")
		if err != nil {
			return endpoint.Reply{}, err
		}
		subcategories, err := svc.ListSubcategories(r.Context(), categoryID)
		return endpoint.OK(subcategories), err
	})
}

// CategoryBreadcrumb returns the parent category and the subcategory itself.
func CategoryBreadcrumb(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, svc != nil, func(r *http.Request) (endpoint.Reply, error) {
		subcategoryID, err := validators.ParsePathID(chi.URLParam(r, "subcategoryId"), "subcategoryId")
		if err != nil {
			return endpoint.Reply{}, err
		}
		crumb, err := svc.Breadcrumb(r.Context(), subcategoryID)
		return endpoint.OK(crumb), err
	})
}
