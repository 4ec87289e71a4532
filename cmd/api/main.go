package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/persiashop/storefront-backend/api/routes"
	"github.com/persiashop/storefront-backend/internal/auth"
	"github.com/persiashop/storefront-backend/internal/bootstrap"
	"github.com/persiashop/storefront-backend/internal/cart"
	"github.com/persiashop/storefront-backend/internal/catalog"
	"github.com/persiashop/storefront-backend/internal/orders"
	"github.com/persiashop/storefront-backend/internal/users"
	"github.com/persiashop/storefront-backend/pkg/auth/session"
	"github.com/persiashop/storefront-backend/pkg/metrics"
	"github.com/persiashop/storefront-backend/pkg/outbox"
)

const shutdownGrace = 15 * time.Second

func main() {
	proc := bootstrap.Start("api", false)
	cfg := proc.Config
	logg := proc.Log
	ctx := context.Background()

	database := proc.Database(ctx)
	redisClient := proc.Redis(ctx)

	sessions, err := session.NewManager(redisClient, cfg.JWT)
	proc.Must("session manager", err)

	// the api serves /metrics itself, from its own registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(registry)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(database.DB()),
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		OTPConfig:      cfg.OTP,
		ExposeCode:     cfg.FeatureFlags.ExposeOTP && !cfg.App.IsProd(),
		Logger:         logg,
	})
	proc.Must("auth service", err)

	catalogService, err := catalog.NewService(catalog.NewRepository(database.DB()))
	proc.Must("catalog service", err)

	events := outbox.NewService(outbox.NewRepository(database.DB()), logg)
	carts := cart.NewRepository(database.DB())
	cartCache := cart.NewCache(redisClient, cfg.Cart.CacheTTL, cartMetrics, logg)

	cartService, err := cart.NewService(cart.ServiceParams{
		Repo:       carts,
		Tx:         database,
		Outbox:     events,
		Locks:      redisClient,
		GuestStore: redisClient,
		Cache:      cartCache,
		Metrics:    cartMetrics,
		Logger:     logg,
		Config:     cfg.Cart,
	})
	proc.Must("cart service", err)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(database.DB()),
		Carts:     carts,
		Tx:        database,
		Outbox:    events,
		Options:   catalogService,
		CartCache: cartCache,
		Logger:    logg,
	})
	proc.Must("orders service", err)

	// PORT is set by the hosting platform and wins over config
	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	server := &http.Server{
		Addr: ":" + port,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       database,
			Redis:    redisClient,
			Sessions: sessions,
			Auth:     authService,
			Catalog:  catalogService,
			Cart:     cartService,
			Orders:   orderService,
			Metrics:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := proc.ServeHTTP(server, shutdownGrace); err != nil {
		os.Exit(1)
	}
}
