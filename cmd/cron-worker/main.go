package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/campuscart/marketplace-backend/internal/bootstrap"
	"github.com/campuscart/marketplace-backend/internal/cron"
	"github.com/campuscart/marketplace-backend/internal/notifications"
	"github.com/campuscart/marketplace-backend/internal/orders"
	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/db"
	"github.com/campuscart/marketplace-backend/pkg/instance"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/metrics"
	"github.com/campuscart/marketplace-backend/pkg/outbox"
)

func main() {
	rt := bootstrap.Start("cron-worker")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	dbClient := rt.Database()
	redisClient := rt.Redis()

	commerce, err := rt.Commerce(dbClient, redisClient, prometheus.DefaultRegisterer)
	rt.Check("build order services", err)

	registry, err := buildJobs(cfg, logg, dbClient, commerce.Orders)
	rt.Check("register cron jobs", err)

	instanceID := instance.ID("cron-0")
	lock, err := cron.NewRedisLock(redisClient, cfg.App.Env, instanceID, cfg.Cron.LockTTL)
	rt.Check("create cron lock", err)

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	rt.Check("create cron service", err)

	ctx := logg.WithFields(rt.Ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instanceID,
		"interval":    cfg.Cron.Interval.String(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.Fatal("cron worker stopped unexpectedly", err)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, orderService orders.Service) (*cron.Registry, error) {
	ttlJob, err := cron.NewOrderTTLJob(cron.OrderTTLJobParams{
		Logger:    logg,
		Orders:    orderService,
		UnpaidTTL: cfg.Orders.UnpaidTTL,
	})
	if err != nil {
		return nil, err
	}
	refundJob, err := cron.NewRefundRetryJob(cron.RefundRetryJobParams{
		Logger:    logg,
		Orders:    orderService,
		BatchSize: cfg.Orders.RefundRetryBatch,
	})
	if err != nil {
		return nil, err
	}
	notificationJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: notifications.NewRepository(dbClient.DB()),
		Retention:  cfg.Cron.NotificationRetention,
	})
	if err != nil {
		return nil, err
	}
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Retention:   cfg.Outbox.Retention,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewRegistry(ttlJob, refundJob, notificationJob, outboxJob)
}
