package config

// EnvPrefix is passed to envconfig. Struct tags carry the full variable
// name, which envconfig falls back to when the prefixed key is unset.
const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "STOREFRONT_APP_ENV"
	EnvPort     = "STOREFRONT_APP_PORT"
	EnvLogLevel = "STOREFRONT_LOG_LEVEL"

	EnvDBDSN  = "STOREFRONT_DB_DSN"
	EnvDBHost = "STOREFRONT_DB_HOST"
	EnvDBUser = "STOREFRONT_DB_USER"
	EnvDBName = "STOREFRONT_DB_NAME"

	EnvRedisURL = "STOREFRONT_REDIS_URL"

	EnvJWTSecret  = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer  = "STOREFRONT_JWT_ISSUER"
	EnvJWTExpMins = "STOREFRONT_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID      = "STOREFRONT_GCP_PROJECT_ID"
	EnvPubSubDomainTopic = "STOREFRONT_PUBSUB_DOMAIN_TOPIC"

	EnvMailHost = "STOREFRONT_MAIL_SMTP_HOST"
	EnvMailFrom = "STOREFRONT_MAIL_FROM"

	EnvMonitorNotifyOnExpiry = "STOREFRONT_MONITOR_NOTIFY_ON_EXPIRY"
	EnvBackorderLeadTimeDays = "STOREFRONT_BACKORDER_DEFAULT_LEAD_TIME_DAYS"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
