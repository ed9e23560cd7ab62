package config

const (
	EnvPrefix = "ODDFELLOW"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	EnvAppEnv   = "ODDFELLOW_APP_ENV"
	EnvPort     = "ODDFELLOW_APP_PORT"
	EnvDBDriver = "ODDFELLOW_DB_DRIVER"
	EnvDBPath   = "ODDFELLOW_DB_PATH"
	EnvDBDSN    = "ODDFELLOW_DB_DSN"
	EnvDBHost   = "ODDFELLOW_DB_HOST"
	EnvDBUser   = "ODDFELLOW_DB_USER"
	EnvDBName   = "ODDFELLOW_DB_NAME"

	EnvRedisURL = "ODDFELLOW_REDIS_URL"

	EnvAdminToken = "ODDFELLOW_ADMIN_TOKEN"

	EnvStripeAPIKey        = "ODDFELLOW_STRIPE_API_KEY"
	EnvStripeWebhookSecret = "ODDFELLOW_STRIPE_WEBHOOK_SECRET"

	EnvManageTokenSecret = "ODDFELLOW_SUBSCRIPTION_MANAGE_TOKEN_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
