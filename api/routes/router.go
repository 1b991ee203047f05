package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/campuscart/marketplace-backend/api/controllers"
	ordercontrollers "github.com/campuscart/marketplace-backend/api/controllers/orders"
	webhookcontrollers "github.com/campuscart/marketplace-backend/api/controllers/webhooks"
	"github.com/campuscart/marketplace-backend/api/middleware"
	"github.com/campuscart/marketplace-backend/internal/notifications"
	"github.com/campuscart/marketplace-backend/internal/orders"
	"github.com/campuscart/marketplace-backend/pkg/config"
	"github.com/campuscart/marketplace-backend/pkg/enums"
	"github.com/campuscart/marketplace-backend/pkg/logger"
	"github.com/campuscart/marketplace-backend/pkg/metrics"
	pkgredis "github.com/campuscart/marketplace-backend/pkg/redis"
)

// RedisStore is the Redis surface the HTTP layer needs: replay protection,
// rate limiting and the readiness ping.
type RedisStore interface {
	pkgredis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
	Ping(ctx context.Context) error
}

type stripeSecret interface {
	SigningSecret() string
}

// Dependencies groups everything the router mounts.
type Dependencies struct {
	DB            controllers.Pinger
	Redis         RedisStore
	Tokens        middleware.TokenVerifier
	Metrics       *prometheus.Registry
	Products      controllers.ProductService
	Orders        orders.Service
	Notifications notifications.Service
	Webhooks      webhookcontrollers.PaymentWebhookService
	Stripe        stripeSecret
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSAllowedOrigins),
	)

	var redisPinger controllers.Pinger
	if deps.Redis != nil {
		redisPinger = deps.Redis
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": redisPinger,
		}))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Metrics))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentCallback(deps.Webhooks, logg))
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.Webhooks, deps.Stripe, logg))
		r.Post("/square", webhookcontrollers.SquareWebhook(deps.Webhooks, cfg.Square.WebhookSecret, logg))
	})

	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiter          middleware.FixedWindowLimiter
	)
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		limiter = deps.Redis
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(
			middleware.Auth(deps.Tokens, logg),
			middleware.RateLimit(cfg.RateLimit, limiter, logg),
		)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Idempotency(idempotencyStore, logg))

			r.Route("/products", func(r chi.Router) {
				r.Post("/", controllers.CreateProduct(deps.Products, logg))
				r.Get("/{productId}", controllers.GetProduct(deps.Products, logg))
				r.Delete("/{productId}", controllers.RemoveProduct(deps.Products, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordercontrollers.Initiate(deps.Orders, logg))
				r.Get("/", ordercontrollers.List(deps.Orders, logg))
				r.Get("/{orderId}", ordercontrollers.Detail(deps.Orders, logg))
				r.Post("/{orderId}/confirm-payment", ordercontrollers.ConfirmPayment(deps.Orders, logg))
				r.Patch("/{orderId}/status", ordercontrollers.UpdateStatus(deps.Orders, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
			r.Post("/refunds/retry", ordercontrollers.RetryRefunds(deps.Orders, cfg.Orders.RefundRetryBatch, logg))
		})
	})

	return r
}
