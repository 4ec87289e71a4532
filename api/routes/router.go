package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/persiashop/storefront-backend/api/controllers"
	cartcontrollers "github.com/persiashop/storefront-backend/api/controllers/cart"
	ordercontrollers "github.com/persiashop/storefront-backend/api/controllers/orders"
	"github.com/persiashop/storefront-backend/api/middleware"
	"github.com/persiashop/storefront-backend/internal/auth"
	"github.com/persiashop/storefront-backend/internal/cart"
	"github.com/persiashop/storefront-backend/internal/catalog"
	"github.com/persiashop/storefront-backend/internal/orders"
	"github.com/persiashop/storefront-backend/pkg/auth/session"
	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/db"
	"github.com/persiashop/storefront-backend/pkg/logger"
	pkgredis "github.com/persiashop/storefront-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(ctx context.Context, userID int64, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, userID int64, accessID string) error
	RevokeAll(ctx context.Context, userID int64) (int, error)
}

// redisStore is the slice of the redis client the HTTP layer touches directly.
type redisStore interface {
	pkgredis.IdempotencyStore
	pkgredis.Pinger
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// RouterParams bundles everything the HTTP surface depends on. Metrics is optional.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       db.Pinger
	Redis    redisStore
	Sessions sessionManager
	Auth     auth.Service
	Catalog  catalog.Service
	Cart     cart.Service
	Orders   orders.Service
	Metrics  http.Handler
}

func NewRouter(p RouterParams) http.Handler {
	cfg, logg := p.Config, p.Logger
	r := chi.NewRouter()
	// Recoverer sits inside Logging so a recovered panic is still logged as a 500.
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	limits := cfg.AuthRateLimit
	otpPolicy := middleware.AuthRateLimitPolicy{
		Name: "otp", Window: limits.OTPWindow, IPLimit: limits.OTPIPLimit, PhoneLimit: limits.OTPPhoneLimit,
	}
	verifyPolicy := middleware.AuthRateLimitPolicy{
		Name: "verify", Window: limits.VerifyWindow, IPLimit: limits.VerifyIPLimit, PhoneLimit: limits.VerifyPhoneLimit,
	}
	pricing := cartcontrollers.Pricing{Catalog: p.Catalog, ServerSide: cfg.Cart.ServerSidePrices}
	requireAuth := middleware.Auth(cfg.JWT, p.Sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "database", Check: p.DB.Ping},
			controllers.ReadinessCheck{Name: "redis", Check: p.Redis.Ping},
		))
	})
	if p.Metrics != nil {
		r.Handle("/metrics", p.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(otpPolicy, p.Redis, logg)).Post("/request-code", controllers.AuthRequestCode(p.Auth, logg))
			r.With(middleware.AuthRateLimit(verifyPolicy, p.Redis, logg)).Post("/verify", controllers.AuthVerifyCode(p.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(p.Sessions, p.Auth, cfg.JWT, logg))
			r.Post("/logout", controllers.AuthLogout(p.Sessions, cfg.JWT, logg))
			r.With(requireAuth).Post("/logout-all", controllers.AuthLogoutAll(p.Sessions, logg))
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", controllers.ListCategories(p.Catalog, logg))
			r.Get("/{categoryId}/subcategories", controllers.ListSubcategories(p.Catalog, logg))
		})
		r.Get("/subcategories/{subcategoryId}/breadcrumb", controllers.CategoryBreadcrumb(p.Catalog, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(p.Catalog, logg))
			r.Get("/{productId}", controllers.GetProduct(p.Catalog, logg))
		})

		r.Route("/guest/cart", func(r chi.Router) {
			r.Use(middleware.CartSession(logg))
			r.Get("/", cartcontrollers.GuestFetch(p.Cart, logg))
			r.Delete("/", cartcontrollers.GuestClear(p.Cart, logg))
			r.Post("/items", cartcontrollers.GuestAddItem(p.Cart, pricing, logg))
			r.Patch("/items", cartcontrollers.GuestUpdateItem(p.Cart, logg))
			r.Delete("/items", cartcontrollers.GuestRemoveItem(p.Cart, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", controllers.Me(p.Auth, logg))
				r.Put("/profile", controllers.CompleteProfile(p.Auth, logg))
				r.Patch("/profile", controllers.CompleteProfile(p.Auth, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Use(middleware.CartSession(logg))
				r.Get("/", cartcontrollers.CartFetch(p.Cart, logg))
				r.Delete("/", cartcontrollers.CartClear(p.Cart, logg))
				r.Post("/items", cartcontrollers.CartAddItem(p.Cart, pricing, logg))
				r.Patch("/items/{itemId}", cartcontrollers.CartUpdateItem(p.Cart, logg))
				r.Delete("/items/{itemId}", cartcontrollers.CartRemoveItem(p.Cart, logg))
				r.With(middleware.Idempotency(p.Redis, middleware.IdempotencyPolicy{
					Scope: "cart.merge",
					TTL:   cfg.Cart.IdempotencyTTL,
				}, logg)).Post("/merge", cartcontrollers.CartMerge(p.Cart, pricing, cfg.Cart.MaxMergeItems, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(middleware.Idempotency(p.Redis, middleware.IdempotencyPolicy{
					Scope:      "orders.create",
					TTL:        cfg.Orders.IdempotencyTTL,
					PendingTTL: cfg.Orders.IdempotencyPendingTTL,
				}, logg)).Post("/", ordercontrollers.Create(p.Orders, logg))
				r.Get("/", ordercontrollers.List(p.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(p.Orders, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireAdmin(cfg.Orders.AdminUserIDs, logg))
				r.Patch("/orders/{orderId}/status", ordercontrollers.UpdateStatus(p.Orders, logg))
			})
		})
	})

	return r
}
