package main

import (
	"context"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/persiashop/storefront-backend/internal/bootstrap"
	"github.com/persiashop/storefront-backend/internal/relay"
	"github.com/persiashop/storefront-backend/pkg/metrics"
	"github.com/persiashop/storefront-backend/pkg/outbox"
	"github.com/persiashop/storefront-backend/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("outbox-publisher", true)
	cfg := proc.Config
	ctx := context.Background()

	database := proc.Database(ctx)
	pubsubClient := proc.PubSub(ctx)

	events, err := registry.NewEventRegistry(cfg.PubSub)
	proc.Must("event registry", err)

	// registered after the pubsub client, so it flushes before the client closes
	sink := relay.NewPubSubSink(pubsubClient)
	proc.OnClose("publishers", func() error { sink.Stop(); return nil })

	outboxRelay, err := relay.New(relay.Deps{
		Tx:          database,
		Store:       outbox.NewRepository(database.DB()),
		DeadLetters: outbox.NewDLQRepository(database.DB()),
		Resolver:    events,
		Sink:        sink,
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
		Logger:      proc.Log,
	}, relay.OptionsFromConfig(cfg.Outbox))
	proc.Must("outbox relay", err)

	if err := proc.RunWorker(map[string]any{"topics": events.Topics()}, outboxRelay.Run); err != nil {
		os.Exit(1)
	}
}
