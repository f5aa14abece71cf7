package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	PersistenceRedis = "redis"
	PersistenceGorm  = "gorm"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv            = "STOREFRONT_APP_ENV"
	EnvPort              = "STOREFRONT_APP_PORT"
	EnvPublicURL         = "STOREFRONT_PUBLIC_URL"
	EnvTebexToken        = "STOREFRONT_TEBEX_TOKEN"
	EnvRedisURL          = "STOREFRONT_REDIS_URL"
	EnvDBDriver          = "STOREFRONT_DB_DRIVER"
	EnvDBDSN             = "STOREFRONT_DB_DSN"
	EnvPersistenceDriver = "STOREFRONT_PERSISTENCE_DRIVER"
	EnvSessionSecret     = "STOREFRONT_SESSION_SECRET"
	EnvAuthPageOrigin    = "STOREFRONT_AUTH_PAGE_ORIGIN"
	EnvAuthGuardDelay    = "STOREFRONT_AUTH_GUARD_DELAY"
)
