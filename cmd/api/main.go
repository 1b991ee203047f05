package main

import (
	"github.com/campuscart/marketplace-backend/api"
	"github.com/campuscart/marketplace-backend/api/routes"
	"github.com/campuscart/marketplace-backend/internal/bootstrap"
	"github.com/campuscart/marketplace-backend/internal/notifications"
	"github.com/campuscart/marketplace-backend/internal/webhooks"
	"github.com/campuscart/marketplace-backend/pkg/auth"
	"github.com/campuscart/marketplace-backend/pkg/instance"
	"github.com/campuscart/marketplace-backend/pkg/metrics"
	"github.com/campuscart/marketplace-backend/pkg/stripe"
)

func main() {
	rt := bootstrap.Start("api")
	defer rt.Close()
	cfg, logg := rt.Config, rt.Logger

	dbClient := rt.Database()
	redisClient := rt.Redis()
	registry := metrics.NewRegistry()

	commerce, err := rt.Commerce(dbClient, redisClient, registry)
	rt.Check("build order services", err)

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	rt.Check("create notifications service", err)

	guard, err := webhooks.NewIdempotencyGuard(redisClient, cfg.Payments.WebhookDedupeTTL, "payment-webhook")
	rt.Check("create webhook guard", err)
	webhookService, err := webhooks.NewService(webhooks.ServiceParams{
		Orders: commerce.Orders,
		Guard:  guard,
		Logger: logg,
	})
	rt.Check("create webhook service", err)

	tokens, err := auth.NewTokens(cfg.JWT)
	rt.Check("configure token verification", err)

	deps := routes.Dependencies{
		DB:            dbClient,
		Tokens:        tokens,
		Redis:         redisClient,
		Metrics:       registry,
		Products:      commerce.Products,
		Orders:        commerce.Orders,
		Notifications: notificationService,
		Webhooks:      webhookService,
	}
	if stripeGateway, ok := commerce.Gateway.(*stripe.Gateway); ok {
		deps.Stripe = stripeGateway
	}

	server := api.NewServer(cfg.App, routes.NewRouter(cfg, logg, deps), logg)
	ctx := logg.WithFields(rt.Ctx, map[string]any{
		"env":               cfg.App.Env,
		"addr":              server.Addr(),
		"instance":          instance.ID("local"),
		"payments_provider": commerce.Gateway.Provider(),
	})
	logg.Info(ctx, "starting api server")

	if err := server.Run(ctx); err != nil {
		rt.Fatal("api server stopped unexpectedly", err)
	}
	logg.Info(ctx, "api server stopped")
}
