package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/campuscart/marketplace-backend/internal/bootstrap"
	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/kafka"
	"github.com/campuscart/marketplace-backend/pkg/metrics"
	"github.com/campuscart/marketplace-backend/pkg/outbox"
	"github.com/campuscart/marketplace-backend/pkg/outbox/registry"
	"github.com/campuscart/marketplace-backend/pkg/pubsub"
)

func main() {
	rt := bootstrap.Start("outbox-publisher")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	dbClient := rt.Database()

	eventTransport, err := buildTransport(rt)
	rt.Check("bootstrap event transport", err)

	eventRegistry, err := registry.NewEventRegistry(registry.TopicsFor(cfg))
	rt.Check("build event registry", err)

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Transport:     eventTransport,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	rt.Check("create outbox publisher", err)

	ctx := logg.WithFields(rt.Ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"transport":   eventTransport.Name(),
	})
	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal("outbox publisher stopped unexpectedly", err)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func buildTransport(rt *bootstrap.Runtime) (transport, error) {
	if rt.Config.Events.TransportName() == config.EventsTransportKafka {
		client, err := kafka.NewClient(rt.Config.Kafka, rt.Logger)
		if err != nil {
			return nil, err
		}
		rt.Defer("kafka", client.Close)
		return newKafkaTransport(client)
	}

	client, err := pubsub.NewClient(rt.Ctx, rt.Config.GCP, rt.Config.PubSub, rt.Logger)
	if err != nil {
		return nil, err
	}
	rt.Defer("pubsub", client.Close)
	return newPubSubTransport(client)
}
