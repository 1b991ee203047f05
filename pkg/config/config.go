package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Payments     PaymentsConfig
	Stripe       StripeConfig
	Square       SquareConfig
	Orders       OrdersConfig
	Events       EventsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Kafka        KafkaConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CAMPUSCART_APP_ENV" required:"true"`
	Port         string `envconfig:"CAMPUSCART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CAMPUSCART_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"CAMPUSCART_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"CAMPUSCART_LOG_WARN_STACK" default:"false"`

	ReadTimeout     time.Duration `envconfig:"CAMPUSCART_HTTP_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"CAMPUSCART_HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"CAMPUSCART_HTTP_SHUTDOWN_TIMEOUT" default:"20s"`

	CORSAllowedOrigins []string `envconfig:"CAMPUSCART_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CAMPUSCART_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CAMPUSCART_DB_DSN"`
	Driver string `envconfig:"CAMPUSCART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CAMPUSCART_DB_HOST"`
	LegacyPort     int    `envconfig:"CAMPUSCART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CAMPUSCART_DB_USER"`
	LegacyPassword string `envconfig:"CAMPUSCART_DB_PASSWORD"`
	LegacyName     string `envconfig:"CAMPUSCART_DB_NAME"`
	LegacySSLMode  string `envconfig:"CAMPUSCART_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"CAMPUSCART_SQLITE_PATH" default:"campuscart.db"`

	MaxOpenConns    int           `envconfig:"CAMPUSCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CAMPUSCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CAMPUSCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CAMPUSCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"CAMPUSCART_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CAMPUSCART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CAMPUSCART_REDIS_ADDR"`
	Password     string        `envconfig:"CAMPUSCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"CAMPUSCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CAMPUSCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CAMPUSCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CAMPUSCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CAMPUSCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CAMPUSCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CAMPUSCART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CAMPUSCART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CAMPUSCART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RateLimitConfig struct {
	Window time.Duration `envconfig:"CAMPUSCART_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"CAMPUSCART_RATE_LIMIT_REQUESTS" default:"120"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CAMPUSCART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CAMPUSCART_AUTO_MIGRATE" default:"false"`
}

// PaymentsConfig selects the gateway adapter and holds the escrow knobs shared by all providers.
type PaymentsConfig struct {
	Provider          string        `envconfig:"CAMPUSCART_PAYMENTS_PROVIDER" default:"local"`
	SigningSecret     string        `envconfig:"CAMPUSCART_PAYMENTS_SIGNING_SECRET" required:"true"`
	Currency          string        `envconfig:"CAMPUSCART_PAYMENTS_CURRENCY" default:"INR"`
	PickupFee         int64         `envconfig:"CAMPUSCART_DELIVERY_FEE_PICKUP" default:"0"`
	StandardFee       int64         `envconfig:"CAMPUSCART_DELIVERY_FEE_STANDARD" default:"50"`
	ExpressFee        int64         `envconfig:"CAMPUSCART_DELIVERY_FEE_EXPRESS" default:"100"`
	RefundMaxAttempts int           `envconfig:"CAMPUSCART_REFUND_MAX_ATTEMPTS" default:"4"`
	RefundBaseBackoff time.Duration `envconfig:"CAMPUSCART_REFUND_BASE_BACKOFF" default:"200ms"`
	RefundMaxBackoff  time.Duration `envconfig:"CAMPUSCART_REFUND_MAX_BACKOFF" default:"5s"`
	WebhookDedupeTTL  time.Duration `envconfig:"CAMPUSCART_PAYMENTS_WEBHOOK_DEDUPE_TTL" default:"72h"`
}

func (p PaymentsConfig) ProviderName() string {
	provider := strings.TrimSpace(strings.ToLower(p.Provider))
	if provider == "" {
		return PaymentsProviderLocal
	}
	return provider
}

func (p PaymentsConfig) validate() error {
	switch p.ProviderName() {
	case PaymentsProviderLocal, PaymentsProviderStripe, PaymentsProviderSquare:
	default:
		return fmt.Errorf("unsupported payments provider %q", p.Provider)
	}
	if p.PickupFee < 0 || p.StandardFee < 0 || p.ExpressFee < 0 {
		return fmt.Errorf("delivery fees must be non-negative")
	}
	return nil
}

type StripeConfig struct {
	APIKey string `envconfig:"CAMPUSCART_STRIPE_API_KEY"`
	Secret string `envconfig:"CAMPUSCART_STRIPE_SECRET"`
	Env    string `envconfig:"CAMPUSCART_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SquareConfig struct {
	AccessToken   string `envconfig:"CAMPUSCART_SQUARE_ACCESS_TOKEN"`
	WebhookSecret string `envconfig:"CAMPUSCART_SQUARE_WEBHOOK_SECRET"`
	LocationID    string `envconfig:"CAMPUSCART_SQUARE_LOCATION_ID"`
	Env           string `envconfig:"CAMPUSCART_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type OrdersConfig struct {
	LockTTL          time.Duration `envconfig:"CAMPUSCART_ORDERS_LOCK_TTL" default:"30s"`
	UnpaidTTL        time.Duration `envconfig:"CAMPUSCART_ORDERS_UNPAID_TTL" default:"24h"`
	RefundRetryBatch int           `envconfig:"CAMPUSCART_ORDERS_REFUND_RETRY_BATCH" default:"25"`
}

type EventsConfig struct {
	Transport      string        `envconfig:"CAMPUSCART_EVENTS_TRANSPORT" default:"pubsub"`
	IdempotencyTTL time.Duration `envconfig:"CAMPUSCART_EVENTS_IDEMPOTENCY_TTL" default:"720h"`
}

func (e EventsConfig) TransportName() string {
	transport := strings.TrimSpace(strings.ToLower(e.Transport))
	if transport == "" {
		return EventsTransportPubSub
	}
	return transport
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CAMPUSCART_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CAMPUSCART_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"CAMPUSCART_PUBSUB_ORDERS_TOPIC" default:"cc-order-events"`
	NotificationTopic        string `envconfig:"CAMPUSCART_PUBSUB_NOTIFICATION_TOPIC" default:"cc-notification-events"`
	NotificationSubscription string `envconfig:"CAMPUSCART_PUBSUB_NOTIFICATION_SUBSCRIPTION" default:"cc-notification-events-sub"`
}

type KafkaConfig struct {
	Brokers           []string `envconfig:"CAMPUSCART_KAFKA_BROKERS"`
	OrdersTopic       string   `envconfig:"CAMPUSCART_KAFKA_ORDERS_TOPIC" default:"cc.order-events"`
	NotificationTopic string   `envconfig:"CAMPUSCART_KAFKA_NOTIFICATION_TOPIC" default:"cc.notification-events"`
	ConsumerGroup     string   `envconfig:"CAMPUSCART_KAFKA_CONSUMER_GROUP" default:"cc-notification-worker"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CAMPUSCART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CAMPUSCART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CAMPUSCART_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"CAMPUSCART_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"CAMPUSCART_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"CAMPUSCART_CRON_LOCK_TTL" default:"10m"`

	NotificationRetention time.Duration `envconfig:"CAMPUSCART_CRON_NOTIFICATION_RETENTION" default:"2160h"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite || db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
