package config

const EnvPrefix = "REVOFY"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "REVOFY_APP_ENV"
	EnvPort   = "REVOFY_APP_PORT"

	EnvDBDSN  = "REVOFY_DB_DSN"
	EnvDBHost = "REVOFY_DB_HOST"
	EnvDBUser = "REVOFY_DB_USER"
	EnvDBName = "REVOFY_DB_NAME"

	EnvRedisURL = "REVOFY_REDIS_URL"

	EnvJWTSecret = "REVOFY_JWT_SECRET"

	EnvQuotaDailyLimit      = "REVOFY_QUOTA_DAILY_LIMIT"
	EnvQuotaMonthlyLimit    = "REVOFY_QUOTA_MONTHLY_LIMIT"
	EnvQuotaFreeTierEnabled = "REVOFY_QUOTA_FREE_TIER_ENABLED"

	EnvLemonSqueezyWebhookSecret = "REVOFY_LEMONSQUEEZY_WEBHOOK_SECRET"
	EnvLemonSqueezyCheckoutURL   = "REVOFY_LEMONSQUEEZY_CHECKOUT_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
