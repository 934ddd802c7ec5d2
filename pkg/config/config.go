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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Cart         CartConfig
	Checkout     CheckoutConfig
	Payments     PaymentsConfig
	Stripe       StripeConfig
	PSE          PSEConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"MERCAFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"MERCAFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"MERCAFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"MERCAFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MERCAFLOW_DB_DSN"`
	Driver string `envconfig:"MERCAFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MERCAFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"MERCAFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MERCAFLOW_DB_USER"`
	LegacyPassword string `envconfig:"MERCAFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"MERCAFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"MERCAFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MERCAFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MERCAFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MERCAFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MERCAFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MERCAFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MERCAFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"MERCAFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"MERCAFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MERCAFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MERCAFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MERCAFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MERCAFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MERCAFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig verifies tokens issued by the identity service; this backend
// never mints credentials of its own.
type JWTConfig struct {
	Secret string `envconfig:"MERCAFLOW_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"MERCAFLOW_JWT_ISSUER" required:"true"`
}

type CartConfig struct {
	// TTL is the rolling inactivity window applied on every cart mutation.
	TTL time.Duration `envconfig:"MERCAFLOW_CART_TTL" default:"720h"`
}

type CheckoutConfig struct {
	SessionTTL        time.Duration `envconfig:"MERCAFLOW_CHECKOUT_SESSION_TTL" default:"30m"`
	ShippingFlatCents int64         `envconfig:"MERCAFLOW_CHECKOUT_SHIPPING_FLAT_CENTS" default:"0"`
}

type PaymentsConfig struct {
	MaxAttemptsPerOrder int           `envconfig:"MERCAFLOW_PAYMENTS_MAX_ATTEMPTS_PER_ORDER" default:"3"`
	GatewayTimeout      time.Duration `envconfig:"MERCAFLOW_PAYMENTS_GATEWAY_TIMEOUT" default:"30s"`
	DefaultCurrency     string        `envconfig:"MERCAFLOW_PAYMENTS_DEFAULT_CURRENCY" default:"COP"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"MERCAFLOW_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"MERCAFLOW_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"MERCAFLOW_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PSEConfig holds credentials for the PSE bank-redirect aggregator.
type PSEConfig struct {
	BaseURL     string        `envconfig:"MERCAFLOW_PSE_BASE_URL"`
	APIKey      string        `envconfig:"MERCAFLOW_PSE_API_KEY"`
	Secret      string        `envconfig:"MERCAFLOW_PSE_SECRET"`
	ReturnURL   string        `envconfig:"MERCAFLOW_PSE_RETURN_URL"`
	HTTPTimeout time.Duration `envconfig:"MERCAFLOW_PSE_HTTP_TIMEOUT" default:"30s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"MERCAFLOW_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"MERCAFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"MERCAFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"MERCAFLOW_PUBSUB_DOMAIN_TOPIC" default:"mf-domain-events"`
	DomainSubscription string `envconfig:"MERCAFLOW_PUBSUB_DOMAIN_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MERCAFLOW_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MERCAFLOW_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MERCAFLOW_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MERCAFLOW_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MERCAFLOW_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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
