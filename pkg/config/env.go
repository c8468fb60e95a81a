package config

const (
	EnvPrefix = "STORECONSOLE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EventSourcePostgres = "postgres"
	EventSourceBigQuery = "bigquery"

	EnvAppEnv       = "STORECONSOLE_APP_ENV"
	EnvPort         = "STORECONSOLE_APP_PORT"
	EnvDBDSN        = "STORECONSOLE_DB_DSN"
	EnvDBHost       = "STORECONSOLE_DB_HOST"
	EnvDBUser       = "STORECONSOLE_DB_USER"
	EnvDBName       = "STORECONSOLE_DB_NAME"
	EnvDBPassword   = "STORECONSOLE_DB_PASSWORD"
	EnvRedisURL     = "STORECONSOLE_REDIS_URL"
	EnvJWTSecret    = "STORECONSOLE_JWT_SECRET"
	EnvJWTIssuer    = "STORECONSOLE_JWT_ISSUER"
	EnvEventSource  = "STORECONSOLE_EVENT_SOURCE"
	EnvSLAThreshold = "STORECONSOLE_METRICS_SLA_THRESHOLD"
	EnvChatLookback = "STORECONSOLE_METRICS_CHAT_LOOKBACK"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
