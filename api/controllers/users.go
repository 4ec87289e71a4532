package controllers

import (
	"net/http"

	"github.com/persiashop/storefront-backend/api/controllers/endpoint"
	"github.com/persiashop/storefront-backend/api/validators"
	"github.com/persiashop/storefront-backend/internal/auth"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

const maxNameRunes = 100

// Me returns the authenticated user.
func Me(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.ForUser(logg, svc != nil, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		user, err := svc.CurrentUser(r.Context(), userID)
		return endpoint.OK(user), err
	})
}

// CompleteProfile stores the first and last name of the authenticated user.
func CompleteProfile(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.ForUser(logg, svc != nil, func(r *http.Request, userID int64) (endpoint.Reply, error) {
		var body auth.CompleteProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Reply{}, err
		}
		body.FirstName = validators.SanitizeString(body.FirstName, maxNameRunes)
		body.LastName = validators.SanitizeString(body.LastName, maxNameRunes)
		user, err := svc.CompleteProfile(r.Context(), userID, body)
		return endpoint.OK(user), err
	})
}
