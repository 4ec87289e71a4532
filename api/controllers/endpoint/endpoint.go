// Package endpoint adapts small request functions into chi handlers so that
// every controller renders replies and errors the same way.
package endpoint

import (
	"context"
	"net/http"

	"github.com/persiashop/storefront-backend/api/middleware"
	"github.com/persiashop/storefront-backend/api/responses"
	"github.com/persiashop/storefront-backend/api/validators"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

// Reply is a successful outcome waiting to be rendered.
type Reply struct {
	Status int
	Body   any
	page   *page
}

type page struct {
	next  string
	limit int
}

func OK(body any) Reply      { return Reply{Status: http.StatusOK, Body: body} }
func Created(body any) Reply { return Reply{Status: http.StatusCreated, Body: body} }
func NoContent() Reply       { return Reply{Status: http.StatusNoContent} }

// Page renders data with cursor metadata.
func Page(data any, nextCursor string, limit int) Reply {
	return Reply{Status: http.StatusOK, Body: data, page: &page{next: nextCursor, limit: limit}}
}

type (
	Func     func(r *http.Request) (Reply, error)
	UserFunc func(r *http.Request, userID int64) (Reply, error)
)

// Handle renders whatever fn returns. A false ready reports the backing
// service as missing without calling fn.
func Handle(logg *logger.Logger, ready bool, fn Func) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ready {
			Render(w, r, logg, Reply{}, pkgerrors.New(pkgerrors.CodeInternal, "service unavailable"))
			return
		}
		rep, err := fn(r)
		Render(w, r, logg, rep, err)
	}
}

// ForUser is Handle for authenticated callers. Route middleware rejects
// anonymous requests first; the check here catches handlers mounted outside it.
func ForUser(logg *logger.Logger, ready bool, fn UserFunc) http.HandlerFunc {
	return Handle(logg, ready, func(r *http.Request) (Reply, error) {
		userID := middleware.UserIDFromContext(r.Context())
		if userID <= 0 {
			return Reply{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
		}
		return fn(r, userID)
	})
}

// JSON decodes and validates the body as In, then replies with call's result.
func JSON[In, Out any](call func(ctx context.Context, in In) (Out, error)) Func {
	return func(r *http.Request) (Reply, error) {
		var in In
		if err := validators.DecodeJSONBody(r, &in); err != nil {
			return Reply{}, err
		}
		out, err := call(r.Context(), in)
		return OK(out), err
	}
}

// Render writes err when set, otherwise rep.
func Render(w http.ResponseWriter, r *http.Request, logg *logger.Logger, rep Reply, err error) {
	switch {
	case err != nil:
		responses.WriteError(r.Context(), logg, w, err)
	case rep.Status == http.StatusNoContent:
		responses.WriteNoContent(w)
	case rep.page != nil:
		responses.WritePage(w, rep.Body, rep.page.next, rep.page.limit)
	default:
		responses.WriteSuccessStatus(w, rep.Status, rep.Body)
	}
}
