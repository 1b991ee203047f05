package config

const EnvPrefix = "CAMPUSCART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	PaymentsProviderLocal  = "local"
	PaymentsProviderStripe = "stripe"
	PaymentsProviderSquare = "square"
)

const (
	EventsTransportPubSub = "pubsub"
	EventsTransportKafka  = "kafka"
)

const (
	EnvAppEnv   = "CAMPUSCART_APP_ENV"
	EnvPort     = "CAMPUSCART_APP_PORT"
	EnvLogLevel = "CAMPUSCART_LOG_LEVEL"

	EnvDBDSN  = "CAMPUSCART_DB_DSN"
	EnvDBHost = "CAMPUSCART_DB_HOST"
	EnvDBUser = "CAMPUSCART_DB_USER"
	EnvDBName = "CAMPUSCART_DB_NAME"

	EnvUseSQLite = "CAMPUSCART_USE_SQLITE"
	EnvRedisURL  = "CAMPUSCART_REDIS_URL"

	EnvJWTSecret  = "CAMPUSCART_JWT_SECRET"
	EnvJWTIssuer  = "CAMPUSCART_JWT_ISSUER"
	EnvJWTExpMins = "CAMPUSCART_JWT_EXPIRATION_MINUTES"

	EnvPaymentsProvider      = "CAMPUSCART_PAYMENTS_PROVIDER"
	EnvPaymentsSigningSecret = "CAMPUSCART_PAYMENTS_SIGNING_SECRET"
	EnvDeliveryFeeStandard   = "CAMPUSCART_DELIVERY_FEE_STANDARD"

	EnvEventsTransport = "CAMPUSCART_EVENTS_TRANSPORT"
	EnvKafkaBrokers    = "CAMPUSCART_KAFKA_BROKERS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
