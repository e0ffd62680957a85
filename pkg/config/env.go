package config

// EnvPrefix is passed to envconfig; every field carries its full variable name.
const EnvPrefix = "CLIENTSEEKER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "CLIENTSEEKER_APP_ENV"
	EnvPort      = "CLIENTSEEKER_APP_PORT"
	EnvDBDSN     = "CLIENTSEEKER_DB_DSN"
	EnvDBHost    = "CLIENTSEEKER_DB_HOST"
	EnvDBUser    = "CLIENTSEEKER_DB_USER"
	EnvDBName    = "CLIENTSEEKER_DB_NAME"
	EnvDBPort    = "CLIENTSEEKER_DB_PORT"
	EnvRedisURL  = "CLIENTSEEKER_REDIS_URL"
	EnvJWTSecret = "CLIENTSEEKER_JWT_SECRET"
	EnvJWTIssuer = "CLIENTSEEKER_JWT_ISSUER"

	EnvPendingOrderTTL = "CLIENTSEEKER_BILLING_PENDING_ORDER_TTL"
	EnvCatalogPath     = "CLIENTSEEKER_CATALOG_PATH"
	EnvCORSOrigins     = "CLIENTSEEKER_CORS_ORIGINS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
