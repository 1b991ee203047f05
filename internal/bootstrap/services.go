package bootstrap

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/campuscart/marketplace-backend/internal/orders"
	product "github.com/campuscart/marketplace-backend/internal/products"
	"github.com/campuscart/marketplace-backend/pkg/db"
	"github.com/campuscart/marketplace-backend/pkg/metrics"
	"github.com/campuscart/marketplace-backend/pkg/outbox"
	"github.com/campuscart/marketplace-backend/pkg/payments"
	"github.com/campuscart/marketplace-backend/pkg/payments/provider"
	"github.com/campuscart/marketplace-backend/pkg/redis"
)

// Commerce is the product and order graph shared by the API and the cron
// worker.
type Commerce struct {
	Gateway  payments.Gateway
	Outbox   *outbox.Service
	Products *product.Service
	Orders   orders.Service
}

func (rt *Runtime) Commerce(dbClient *db.Client, redisClient *redis.Client, reg prometheus.Registerer) (*Commerce, error) {
	cfg, logg := rt.Config, rt.Logger

	gateway, _, err := provider.New(rt.Ctx, cfg, logg)
	if err != nil {
		return nil, fmt.Errorf("payments provider: %w", err)
	}
	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	products, err := product.NewService(product.ServiceParams{
		Repository: product.NewRepository(dbClient.DB()),
		DB:         dbClient,
		Outbox:     events,
		Logger:     logg,
		Currency:   cfg.Payments.Currency,
	})
	if err != nil {
		return nil, fmt.Errorf("product service: %w", err)
	}

	locker, err := orders.NewRedisLocker(redisClient, cfg.Orders.LockTTL, 0)
	if err != nil {
		return nil, fmt.Errorf("order locker: %w", err)
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repository: orders.NewRepository(dbClient.DB()),
		DB:         dbClient,
		Products:   products,
		Gateway:    gateway,
		Locker:     locker,
		Outbox:     events,
		Metrics:    metrics.NewOrderMetrics(reg),
		Logger:     logg,
		Fees:       orders.DeliveryFeesFromConfig(cfg.Payments),
		RefundPolicy: payments.RetryPolicy{
			MaxAttempts: cfg.Payments.RefundMaxAttempts,
			BaseBackoff: cfg.Payments.RefundBaseBackoff,
			MaxBackoff:  cfg.Payments.RefundMaxBackoff,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}
	return &Commerce{Gateway: gateway, Outbox: events, Products: products, Orders: orderService}, nil
}
