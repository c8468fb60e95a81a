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
	RateLimit    RateLimitConfig
	Metrics      MetricsConfig
	EventSource  EventSourceConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	BigQuery     BigQueryConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.EventSource.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STORECONSOLE_APP_ENV" required:"true"`
	Port         string `envconfig:"STORECONSOLE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STORECONSOLE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STORECONSOLE_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated list of console origins allowed to call the API.
	CORSOrigins []string `envconfig:"STORECONSOLE_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"STORECONSOLE_DB_DSN"`

	LegacyHost     string `envconfig:"STORECONSOLE_DB_HOST"`
	LegacyPort     int    `envconfig:"STORECONSOLE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"STORECONSOLE_DB_USER"`
	LegacyPassword string `envconfig:"STORECONSOLE_DB_PASSWORD"`
	LegacyName     string `envconfig:"STORECONSOLE_DB_NAME"`
	LegacySSLMode  string `envconfig:"STORECONSOLE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"STORECONSOLE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STORECONSOLE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STORECONSOLE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STORECONSOLE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STORECONSOLE_REDIS_URL"`
	Address      string        `envconfig:"STORECONSOLE_REDIS_ADDR"`
	Password     string        `envconfig:"STORECONSOLE_REDIS_PASSWORD"`
	DB           int           `envconfig:"STORECONSOLE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STORECONSOLE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STORECONSOLE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STORECONSOLE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STORECONSOLE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STORECONSOLE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"STORECONSOLE_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"STORECONSOLE_JWT_ISSUER" required:"true"`
}

type RateLimitConfig struct {
	AnalyticsWindow time.Duration `envconfig:"STORECONSOLE_RATE_LIMIT_ANALYTICS_WINDOW" default:"1m"`
	AnalyticsLimit  int           `envconfig:"STORECONSOLE_RATE_LIMIT_ANALYTICS_LIMIT" default:"60"`
}

// MetricsConfig tunes the derived-metrics engine.
type MetricsConfig struct {
	SLAThreshold        time.Duration `envconfig:"STORECONSOLE_METRICS_SLA_THRESHOLD" default:"1h"`
	ChatLookback        int           `envconfig:"STORECONSOLE_METRICS_CHAT_LOOKBACK" default:"500"`
	RecentLookback      int           `envconfig:"STORECONSOLE_METRICS_RECENT_LOOKBACK" default:"200"`
	SubQueryTimeout     time.Duration `envconfig:"STORECONSOLE_METRICS_SUBQUERY_TIMEOUT" default:"3s"`
	DefaultTopN         int           `envconfig:"STORECONSOLE_METRICS_DEFAULT_TOP_N" default:"5"`
	HighDiscountPercent float64       `envconfig:"STORECONSOLE_METRICS_HIGH_DISCOUNT_PERCENT" default:"20"`
}

type EventSourceConfig struct {
	Driver string `envconfig:"STORECONSOLE_EVENT_SOURCE" default:"postgres"`
}

func (e EventSourceConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Driver)) {
	case EventSourcePostgres, EventSourceBigQuery:
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvEventSource, e.Driver)
	}
}

// UsesBigQuery reports whether snapshots read from the warehouse table.
func (e EventSourceConfig) UsesBigQuery() bool {
	return strings.EqualFold(strings.TrimSpace(e.Driver), EventSourceBigQuery)
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STORECONSOLE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STORECONSOLE_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"STORECONSOLE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STORECONSOLE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STORECONSOLE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STORECONSOLE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"STORECONSOLE_BIGQUERY_DATASET" default:"storeconsole"`
	EventsTable string `envconfig:"STORECONSOLE_BIGQUERY_EVENTS_TABLE" default:"store_events"`
	// MirrorEvents copies ingested events into the warehouse table.
	MirrorEvents bool `envconfig:"STORECONSOLE_BIGQUERY_MIRROR_EVENTS" default:"false"`
}

type PubSubConfig struct {
	EventsSubscription string `envconfig:"STORECONSOLE_PUBSUB_EVENTS_SUBSCRIPTION" default:"store-events-ingest"`
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
