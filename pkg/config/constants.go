package config

// EnvPrefix namespaces every environment variable the service reads. The
// envconfig tags carry the full names, so the prefix itself stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "MERCAFLOW_APP_ENV"
	EnvPort     = "MERCAFLOW_APP_PORT"
	EnvDBDSN    = "MERCAFLOW_DB_DSN"
	EnvDBHost   = "MERCAFLOW_DB_HOST"
	EnvDBUser   = "MERCAFLOW_DB_USER"
	EnvDBName   = "MERCAFLOW_DB_NAME"
	EnvRedisURL = "MERCAFLOW_REDIS_URL"

	EnvJWTSecret = "MERCAFLOW_JWT_SECRET"
	EnvJWTIssuer = "MERCAFLOW_JWT_ISSUER"

	EnvGCPProjectID    = "MERCAFLOW_GCP_PROJECT_ID"
	EnvPubSubTopic     = "MERCAFLOW_PUBSUB_DOMAIN_TOPIC"
	EnvPubSubSub       = "MERCAFLOW_PUBSUB_DOMAIN_SUBSCRIPTION"
	EnvStripeAPIKey    = "MERCAFLOW_STRIPE_API_KEY"
	EnvStripeSecret    = "MERCAFLOW_STRIPE_WEBHOOK_SECRET"
	EnvPSEBaseURL      = "MERCAFLOW_PSE_BASE_URL"
	EnvPSEAPIKey       = "MERCAFLOW_PSE_API_KEY"
	EnvPSESecret       = "MERCAFLOW_PSE_SECRET"
	EnvCheckoutTTL     = "MERCAFLOW_CHECKOUT_SESSION_TTL"
	EnvShippingCents   = "MERCAFLOW_CHECKOUT_SHIPPING_FLAT_CENTS"
	EnvDefaultCurrency = "MERCAFLOW_PAYMENTS_DEFAULT_CURRENCY"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
