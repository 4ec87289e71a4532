package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/persiashop/storefront-backend/api/responses"
	"github.com/persiashop/storefront-backend/pkg/config"
	pkgerrors "github.com/persiashop/storefront-backend/pkg/errors"
	"github.com/persiashop/storefront-backend/pkg/logger"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck is a named dependency check such as a database or Redis ping.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently and fails with 503 when any
// of them is down.
func HealthReady(cfg *config.Config, logg *logger.Logger, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Storefront-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		results := make([]string, len(checks))
		var g errgroup.Group
		for i, check := range checks {
			g.Go(func() error {
				if err := check.Check(ctx); err != nil {
					results[i] = "down"
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, check.Name+" unavailable")
				}
				results[i] = "up"
				return nil
			})
		}
		err := g.Wait()

		status := make(map[string]string, len(checks))
		for i, check := range checks {
			status[check.Name] = results[i]
		}
		if err != nil {
			typed := pkgerrors.As(err).WithDetails(status)
			responses.WriteError(r.Context(), logg, w, typed)
			return
		}
		status["status"] = "ready"
		responses.WriteSuccess(w, status)
	}
}
