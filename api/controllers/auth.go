package controllers

import (
	"net/http"

	"github.com/persiashop/storefront-backend/api/controllers/endpoint"
	"github.com/persiashop/storefront-backend/internal/auth"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

// AuthRequestCode sends a one-time login code to a phone number.
func AuthRequestCode(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return endpoint.Handle(logg, false, nil)
	}
	return endpoint.Handle(logg, true, endpoint.JSON(svc.RequestCode))
}

// AuthVerifyCode redeems a login code for an access/refresh token pair. The
// first successful verification for a phone number creates the user.
func AuthVerifyCode(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return endpoint.Handle(logg, false, nil)
	}
	return endpoint.Handle(logg, true, endpoint.JSON(svc.VerifyCode))
}
