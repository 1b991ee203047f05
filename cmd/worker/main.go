package main

import (
	"context"
	"errors"

	"github.com/campuscart/marketplace-backend/internal/bootstrap"
	"github.com/campuscart/marketplace-backend/internal/notifications"
	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/instance"
	"github.com/campuscart/marketplace-backend/pkg/kafka"
	"github.com/campuscart/marketplace-backend/pkg/outbox/idempotency"
	"github.com/campuscart/marketplace-backend/pkg/pubsub"
)

func main() {
	rt := bootstrap.Start("worker")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	dbClient := rt.Database()
	redisClient := rt.Redis()

	manager, err := idempotency.NewManager(redisClient, cfg.Events.IdempotencyTTL)
	rt.Check("create idempotency manager", err)
	consumer, err := notifications.NewConsumer(notifications.NewRepository(dbClient.DB()), manager, logg)
	rt.Check("create notification consumer", err)

	source, err := buildSource(rt, consumer)
	rt.Check("bootstrap event source", err)

	service, err := NewService(ServiceParams{
		Logger: logg,
		DB:     dbClient,
		Redis:  redisClient,
		Source: source,
	})
	rt.Check("create worker service", err)

	ctx := logg.WithFields(rt.Ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID("worker-0"),
		"transport":   source.Name(),
	})
	logg.Info(ctx, "starting worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal("worker stopped unexpectedly", err)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

// buildSource subscribes through the configured transport and registers the
// client for shutdown.
func buildSource(rt *bootstrap.Runtime, consumer *notifications.Consumer) (eventSource, error) {
	if rt.Config.Events.TransportName() == config.EventsTransportKafka {
		client, err := kafka.NewClient(rt.Config.Kafka, rt.Logger)
		if err != nil {
			return nil, err
		}
		rt.Defer("kafka", client.Close)
		return &kafkaSource{client: client, consumer: consumer}, nil
	}

	client, err := pubsub.NewClient(rt.Ctx, rt.Config.GCP, rt.Config.PubSub, rt.Logger)
	if err != nil {
		return nil, err
	}
	rt.Defer("pubsub", client.Close)
	return &pubSubSource{client: client, consumer: consumer}, nil
}
