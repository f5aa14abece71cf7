package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App         AppConfig
	Tebex       TebexConfig
	Redis       RedisConfig
	DB          DBConfig
	Persistence PersistenceConfig
	Session     SessionConfig
	Auth        AuthConfig
	Catalog     CatalogConfig
	CORS        CORSConfig
	RateLimit   RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Persistence.validate(); err != nil {
		return nil, err
	}
	if err := cfg.DB.validate(cfg.Persistence); err != nil {
		return nil, err
	}
	if err := cfg.Auth.resolveOrigin(cfg.App.PublicURL); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	PublicURL    string `envconfig:"STOREFRONT_PUBLIC_URL" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type TebexConfig struct {
	BaseURL      string        `envconfig:"STOREFRONT_TEBEX_BASE_URL" default:"https://headless.tebex.io/api"`
	AccountToken string        `envconfig:"STOREFRONT_TEBEX_TOKEN" required:"true"`
	Currency     string        `envconfig:"STOREFRONT_CURRENCY" default:"EUR"`
	Timeout      time.Duration `envconfig:"STOREFRONT_TEBEX_TIMEOUT" default:"10s"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint has been configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type DBConfig struct {
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	AutoMigrate     bool          `envconfig:"STOREFRONT_DB_AUTO_MIGRATE" default:"false"`
}

type PersistenceConfig struct {
	Driver      string        `envconfig:"STOREFRONT_PERSISTENCE_DRIVER" default:"redis"`
	SnapshotTTL time.Duration `envconfig:"STOREFRONT_SNAPSHOT_TTL" default:"720h"`
}

type SessionConfig struct {
	Secret     string        `envconfig:"STOREFRONT_SESSION_SECRET" required:"true"`
	Issuer     string        `envconfig:"STOREFRONT_SESSION_ISSUER" default:"storefront"`
	TTL        time.Duration `envconfig:"STOREFRONT_SESSION_TTL" default:"720h"`
	CookieName string        `envconfig:"STOREFRONT_SESSION_COOKIE" default:"sf_session"`
	Secure     bool          `envconfig:"STOREFRONT_SESSION_SECURE" default:"true"`
	IdleTTL    time.Duration `envconfig:"STOREFRONT_SESSION_IDLE_TTL" default:"30m"`
}

type AuthConfig struct {
	PageOrigin   string        `envconfig:"STOREFRONT_AUTH_PAGE_ORIGIN"`
	GuardDelay   time.Duration `envconfig:"STOREFRONT_AUTH_GUARD_DELAY" default:"1s"`
	AbandonAfter time.Duration `envconfig:"STOREFRONT_AUTH_ABANDON_AFTER" default:"10m"`
	PopupWidth   int           `envconfig:"STOREFRONT_AUTH_POPUP_WIDTH" default:"600"`
	PopupHeight  int           `envconfig:"STOREFRONT_AUTH_POPUP_HEIGHT" default:"800"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `envconfig:"STOREFRONT_CATALOG_CACHE_TTL" default:"5m"`
}

// RateLimitConfig throttles basket mutations and auth messages per session and client IP.
// A zero limit disables throttling.
type RateLimitConfig struct {
	Window time.Duration `envconfig:"STOREFRONT_RATE_LIMIT_WINDOW" default:"1m"`
	Limit  int           `envconfig:"STOREFRONT_RATE_LIMIT" default:"60"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ORIGINS"`
}

func (p PersistenceConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(p.Driver)) {
	case PersistenceRedis, PersistenceGorm:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q", EnvPersistenceDriver, PersistenceRedis, PersistenceGorm)
	}
}

func (db DBConfig) validate(p PersistenceConfig) error {
	if !strings.EqualFold(p.Driver, PersistenceGorm) {
		return nil
	}
	switch strings.ToLower(db.Driver) {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvDBDriver, DBDriverPostgres, DBDriverSQLite)
	}
	if strings.TrimSpace(db.DSN) == "" {
		return fmt.Errorf("%s is required when %s=%s", EnvDBDSN, EnvPersistenceDriver, PersistenceGorm)
	}
	return nil
}

// resolveOrigin derives the page origin used to validate cross-window messages
// from the public URL when it has not been set explicitly.
func (a *AuthConfig) resolveOrigin(publicURL string) error {
	if strings.TrimSpace(a.PageOrigin) != "" {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(publicURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute url to derive the page origin", EnvPublicURL)
	}
	a.PageOrigin = u.Scheme + "://" + u.Host
	return nil
}
