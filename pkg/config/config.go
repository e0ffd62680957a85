package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	PayPal   PayPalConfig
	Stripe   StripeConfig
	Geo      GeoConfig
	Catalog  CatalogConfig
	Billing  BillingConfig
	Cron     CronConfig
	Eventing EventingConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Outbox   OutboxConfig
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
	Env          string   `envconfig:"CLIENTSEEKER_APP_ENV" required:"true"`
	Port         string   `envconfig:"CLIENTSEEKER_APP_PORT" required:"true"`
	PublicURL    string   `envconfig:"CLIENTSEEKER_APP_PUBLIC_URL" default:"http://localhost:3000"`
	CORSOrigins  []string `envconfig:"CLIENTSEEKER_CORS_ORIGINS" default:"http://localhost:3000"`
	LogLevel     string   `envconfig:"CLIENTSEEKER_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CLIENTSEEKER_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool     `envconfig:"CLIENTSEEKER_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CLIENTSEEKER_SERVICE_KIND" default:"api"`
	// MetricsAddr is where worker binaries serve /metrics; empty disables it.
	MetricsAddr string `envconfig:"CLIENTSEEKER_WORKER_METRICS_ADDR"`
}

type DBConfig struct {
	DSN string `envconfig:"CLIENTSEEKER_DB_DSN"`

	LegacyHost     string `envconfig:"CLIENTSEEKER_DB_HOST"`
	LegacyPort     int    `envconfig:"CLIENTSEEKER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CLIENTSEEKER_DB_USER"`
	LegacyPassword string `envconfig:"CLIENTSEEKER_DB_PASSWORD"`
	LegacyName     string `envconfig:"CLIENTSEEKER_DB_NAME"`
	LegacySSLMode  string `envconfig:"CLIENTSEEKER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CLIENTSEEKER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CLIENTSEEKER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CLIENTSEEKER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CLIENTSEEKER_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"CLIENTSEEKER_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CLIENTSEEKER_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CLIENTSEEKER_REDIS_ADDR"`
	Password     string        `envconfig:"CLIENTSEEKER_REDIS_PASSWORD"`
	DB           int           `envconfig:"CLIENTSEEKER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CLIENTSEEKER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CLIENTSEEKER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CLIENTSEEKER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CLIENTSEEKER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CLIENTSEEKER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"CLIENTSEEKER_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CLIENTSEEKER_JWT_ISSUER" required:"true"`
	// ExpirationMinutes applies to tokens minted by this service (admin tooling and tests).
	ExpirationMinutes int `envconfig:"CLIENTSEEKER_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PayPalConfig struct {
	ClientID string `envconfig:"CLIENTSEEKER_PAYPAL_CLIENT_ID"`
	Secret   string `envconfig:"CLIENTSEEKER_PAYPAL_SECRET"`
	Env      string `envconfig:"CLIENTSEEKER_PAYPAL_ENV" default:"sandbox"`
	Brand    string `envconfig:"CLIENTSEEKER_PAYPAL_BRAND_NAME" default:"ClientSeeker"`
}

// Environment returns the normalized PayPal environment (sandbox/live).
func (p PayPalConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type StripeConfig struct {
	APIKey        string `envconfig:"CLIENTSEEKER_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"CLIENTSEEKER_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"CLIENTSEEKER_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type GeoConfig struct {
	BaseURL  string        `envconfig:"CLIENTSEEKER_GEO_BASE_URL" default:"http://ip-api.com/json"`
	CacheTTL time.Duration `envconfig:"CLIENTSEEKER_GEO_CACHE_TTL" default:"24h"`
	Timeout  time.Duration `envconfig:"CLIENTSEEKER_GEO_TIMEOUT" default:"3s"`
}

type CatalogConfig struct {
	// Path overrides the embedded product catalog when set.
	Path string `envconfig:"CLIENTSEEKER_CATALOG_PATH"`
}

type BillingConfig struct {
	PendingOrderTTL     time.Duration `envconfig:"CLIENTSEEKER_BILLING_PENDING_ORDER_TTL" default:"48h"`
	CaptureMaxAttempts  int           `envconfig:"CLIENTSEEKER_BILLING_CAPTURE_MAX_ATTEMPTS" default:"2"`
	CaptureRetryBackoff time.Duration `envconfig:"CLIENTSEEKER_BILLING_CAPTURE_RETRY_BACKOFF" default:"500ms"`
	CaptureRateLimit    int           `envconfig:"CLIENTSEEKER_BILLING_CAPTURE_RATE_LIMIT" default:"10"`
	CaptureRateWindow   time.Duration `envconfig:"CLIENTSEEKER_BILLING_CAPTURE_RATE_WINDOW" default:"1m"`
	SnowflakeNode       int64         `envconfig:"CLIENTSEEKER_BILLING_SNOWFLAKE_NODE" default:"1"`
}

type CronConfig struct {
	Interval        time.Duration `envconfig:"CLIENTSEEKER_CRON_INTERVAL" default:"5m"`
	LockTTL         time.Duration `envconfig:"CLIENTSEEKER_CRON_LOCK_TTL" default:"4m"`
	OutboxRetention time.Duration `envconfig:"CLIENTSEEKER_CRON_OUTBOX_RETENTION" default:"720h"`
}

type EventingConfig struct {
	WebhookIdempotencyTTL time.Duration `envconfig:"CLIENTSEEKER_EVENTING_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
	RequestIdempotencyTTL time.Duration `envconfig:"CLIENTSEEKER_EVENTING_REQUEST_IDEMPOTENCY_TTL" default:"24h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"CLIENTSEEKER_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"CLIENTSEEKER_GCP_CREDENTIALS_JSON"`
	CredentialsFile string `envconfig:"CLIENTSEEKER_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	BillingTopic string `envconfig:"CLIENTSEEKER_PUBSUB_BILLING_TOPIC" default:"clientseeker-billing-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CLIENTSEEKER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CLIENTSEEKER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CLIENTSEEKER_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
