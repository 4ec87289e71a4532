package main

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/persiashop/storefront-backend/internal/analytics/router"
	"github.com/persiashop/storefront-backend/internal/analytics/worker"
	"github.com/persiashop/storefront-backend/internal/bootstrap"
	"github.com/persiashop/storefront-backend/pkg/bigquery"
	"github.com/persiashop/storefront-backend/pkg/metrics"
	"github.com/persiashop/storefront-backend/pkg/outbox/idempotency"
	"github.com/persiashop/storefront-backend/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("analytics-worker", true)
	cfg := proc.Config
	ctx := context.Background()

	redisClient := proc.Redis(ctx)
	pubsubClient := proc.PubSub(ctx)

	warehouse, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, proc.Log)
	proc.Must("bigquery", err)
	proc.OnClose("bigquery", warehouse.Close)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		proc.Must("analytics subscription", errors.New("subscription not configured"))
	}
	if n := cfg.PubSub.AnalyticsMaxOutstanding; n > 0 {
		subscription.ReceiveSettings.MaxOutstandingMessages = n
	}
	if n := cfg.PubSub.AnalyticsGoroutines; n > 0 {
		subscription.ReceiveSettings.NumGoroutines = n
	}

	dedupe, err := idempotency.NewManager(redisClient, cfg.Outbox.ConsumerIdempotencyTTL)
	proc.Must("idempotency manager", err)

	events, err := router.NewRouter(warehouse, registry.NewDefaultDecoderRegistry(), proc.Log, nil)
	proc.Must("analytics router", err)

	consumer, err := worker.NewConsumer(worker.ConsumerParams{
		Source:  subscription,
		Handler: events,
		Dedupe:  dedupe,
		Metrics: metrics.NewConsumerMetrics(prometheus.DefaultRegisterer),
		Logger:  proc.Log,
	})
	proc.Must("analytics consumer", err)

	fields := map[string]any{"subscription": cfg.PubSub.AnalyticsSubscription}
	if err := proc.RunWorker(fields, consumer.Run); err != nil {
		os.Exit(1)
	}
}
