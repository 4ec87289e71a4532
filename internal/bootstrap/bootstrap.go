// Package bootstrap holds the startup sequence every storefront binary shares:
// environment, config, logger, the backing clients, and an orderly shutdown.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/persiashop/storefront-backend/pkg/config"
	"github.com/persiashop/storefront-backend/pkg/db"
	"github.com/persiashop/storefront-backend/pkg/instance"
	"github.com/persiashop/storefront-backend/pkg/logger"
	"github.com/persiashop/storefront-backend/pkg/metrics"
	"github.com/persiashop/storefront-backend/pkg/migrate"
	"github.com/persiashop/storefront-backend/pkg/pubsub"
	"github.com/persiashop/storefront-backend/pkg/redis"
)

// Process is one running binary. Clients opened through it are closed, newest
// first, by Close.
type Process struct {
	Config *config.Config
	Log    *logger.Logger

	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// Start loads .env (when present) and the config, then builds the logger for
// kind. Background workers tag every line with their instance id.
func Start(kind string, worker bool) *Process {
	boot := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		boot.Debug(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = kind

	opts := logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	}
	if worker {
		opts.Fields = map[string]any{"instance": instance.GetID()}
	}
	return &Process{Config: cfg, Log: logger.New(opts)}
}

// Must exits the process when err is set.
func (p *Process) Must(what string, err error) {
	if err == nil {
		return
	}
	p.Log.Error(context.Background(), fmt.Sprintf("failed to start %s", what), err)
	_ = p.Close()
	os.Exit(1)
}

// OnClose registers fn to run during Close.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, namedCloser{name: name, close: fn})
}

// Close releases everything registered, newest first, and reports every failure.
func (p *Process) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	p.closers = nil
	if errs != nil {
		p.Log.Error(context.Background(), "shutdown cleanup failed", errs)
	}
	return errs
}

// Database connects to the database and applies dev migrations when enabled.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Log)
	p.Must("database", err)
	p.OnClose("database", client.Close)
	p.Must("dev migrations", migrate.MaybeRunDev(ctx, p.Config, p.Log, client))
	return client
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Log)
	p.Must("redis", err)
	p.OnClose("redis", client.Close)
	return client
}

func (p *Process) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Log)
	p.Must("pubsub", err)
	p.OnClose("pubsub", client.Close)
	return client
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the process
// fields for logging.
func (p *Process) SignalContext(fields map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	base := map[string]any{"env": p.Config.App.Env, "serviceKind": p.Config.Service.Kind}
	for k, v := range fields {
		base[k] = v
	}
	return p.Log.WithFields(ctx, base), stop
}

// RunWorker runs loop beside the /metrics listener until a signal arrives or
// either of them fails, then closes the process.
func (p *Process) RunWorker(fields map[string]any, loop func(ctx context.Context) error) error {
	ctx, stop := p.SignalContext(fields)
	defer stop()
	p.Log.Info(ctx, "starting "+p.Config.Service.Kind)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return metrics.Serve(groupCtx, p.Config.Service.MetricsAddr, prometheus.DefaultGatherer, p.Log)
	})
	group.Go(func() error { return loop(groupCtx) })

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	if err != nil {
		p.Log.Error(ctx, p.Config.Service.Kind+" stopped unexpectedly", err)
	} else {
		p.Log.Info(ctx, p.Config.Service.Kind+" shutting down gracefully")
	}
	return multierr.Append(err, p.Close())
}

// ServeHTTP runs server until a signal arrives, then drains in-flight requests
// for at most grace before closing the process.
func (p *Process) ServeHTTP(server *http.Server, grace time.Duration) error {
	ctx, stop := p.SignalContext(map[string]any{"addr": server.Addr})
	defer stop()
	p.Log.Info(ctx, "starting "+p.Config.Service.Kind)

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.ListenAndServe() }()

	var err error
	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		p.Log.Info(ctx, "shutting down "+p.Config.Service.Kind)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
		defer cancel()
		err = server.Shutdown(shutdownCtx)
	}
	if err != nil {
		p.Log.Error(ctx, p.Config.Service.Kind+" stopped unexpectedly", err)
	}
	return multierr.Append(err, p.Close())
}
