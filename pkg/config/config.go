package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	OTP           OTPConfig
	Cart          CartConfig
	Orders        OrdersConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	BigQuery      BigQueryConfig
	Outbox        OutboxConfig
	Maintenance   MaintenanceConfig
}

// Load reads the process environment. A postgres DSN is assembled from the
// host fields when none is given, and the result is checked before use.
func Load() (*Config, error) {
	cfg := new(Config)
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite && cfg.DB.DSN == "" {
		dsn, err := cfg.DB.postgresURL()
		if err != nil {
			return nil, err
		}
		cfg.DB.DSN = dsn
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
	// CORSOrigins is a comma separated allow-list for the storefront web app.
	CORSOrigins string `envconfig:"STOREFRONT_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits CORSOrigins into trimmed, non-empty entries.
func (a AppConfig) AllowedOrigins() []string {
	return strings.FieldsFunc(strings.ReplaceAll(a.CORSOrigins, " ", ""), func(r rune) bool { return r == ',' })
}

type ServiceConfig struct {
	Kind string `envconfig:"STOREFRONT_SERVICE_KIND" default:"api"`
	// MetricsAddr is where background workers serve /metrics. Empty disables it.
	MetricsAddr string `envconfig:"STOREFRONT_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"STOREFRONT_DB_DSN"`
	Driver string `envconfig:"STOREFRONT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"STOREFRONT_DB_HOST"`
	Port     int    `envconfig:"STOREFRONT_DB_PORT" default:"5432"`
	User     string `envconfig:"STOREFRONT_DB_USER"`
	Password string `envconfig:"STOREFRONT_DB_PASSWORD"`
	Name     string `envconfig:"STOREFRONT_DB_NAME"`
	SSLMode  string `envconfig:"STOREFRONT_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"STOREFRONT_SQLITE_PATH" default:"storefront.db"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQueryThreshold logs statements slower than this at warn; 0 disables it.
	SlowQueryThreshold time.Duration `envconfig:"STOREFRONT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" required:"true"`
	// Sessions live for 30 days.
	RefreshTokenTTLMinutes int `envconfig:"STOREFRONT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

// OTPConfig controls phone verification codes and how they are hashed at rest.
type OTPConfig struct {
	CodeTTL          time.Duration `envconfig:"STOREFRONT_OTP_CODE_TTL" default:"5m"`
	CodeLength       int           `envconfig:"STOREFRONT_OTP_CODE_LENGTH" default:"5"`
	ArgonMemoryKB    int           `envconfig:"STOREFRONT_OTP_ARGON_MEMORY_KB" default:"19456"`
	ArgonTime        int           `envconfig:"STOREFRONT_OTP_ARGON_TIME" default:"2"`
	ArgonParallelism int           `envconfig:"STOREFRONT_OTP_ARGON_PARALLELISM" default:"1"`
	ArgonSaltLen     int           `envconfig:"STOREFRONT_OTP_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int           `envconfig:"STOREFRONT_OTP_ARGON_KEY_LEN" default:"32"`
}

type CartConfig struct {
	CacheTTL         time.Duration `envconfig:"STOREFRONT_CART_CACHE_TTL" default:"15m"`
	GuestTTL         time.Duration `envconfig:"STOREFRONT_CART_GUEST_TTL" default:"168h"`
	StaleItemAge     time.Duration `envconfig:"STOREFRONT_CART_STALE_ITEM_AGE" default:"168h"`
	MergeLockTTL     time.Duration `envconfig:"STOREFRONT_CART_MERGE_LOCK_TTL" default:"30s"`
	MaxItemQuantity  int           `envconfig:"STOREFRONT_CART_MAX_ITEM_QUANTITY" default:"99"`
	MaxMergeItems    int           `envconfig:"STOREFRONT_CART_MAX_MERGE_ITEMS" default:"100"`
	IdempotencyTTL   time.Duration `envconfig:"STOREFRONT_CART_IDEMPOTENCY_TTL" default:"24h"`
	ServerSidePrices bool          `envconfig:"STOREFRONT_CART_SERVER_SIDE_PRICES" default:"true"`
}

type OrdersConfig struct {
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_ORDERS_IDEMPOTENCY_TTL" default:"168h"`
	// IdempotencyPendingTTL bounds how long an in-flight request blocks retries of its key.
	IdempotencyPendingTTL time.Duration `envconfig:"STOREFRONT_ORDERS_IDEMPOTENCY_PENDING_TTL" default:"1m"`
	// AdminUserIDs may change any order's status.
	AdminUserIDs []int64 `envconfig:"STOREFRONT_ORDERS_ADMIN_USER_IDS"`
}

type AuthRateLimitConfig struct {
	OTPWindow     time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_OTP_WINDOW" default:"5m"`
	OTPPhoneLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_OTP_PHONE_LIMIT" default:"3"`
	OTPIPLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_OTP_IP_LIMIT" default:"20"`

	VerifyWindow     time.Duration `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_VERIFY_WINDOW" default:"5m"`
	VerifyPhoneLimit int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_VERIFY_PHONE_LIMIT" default:"5"`
	VerifyIPLimit    int           `envconfig:"STOREFRONT_AUTH_RATE_LIMIT_VERIFY_IP_LIMIT" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"STOREFRONT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
	// ExposeOTP returns verification codes in the API response while SMS delivery is stubbed.
	ExposeOTP bool `envconfig:"STOREFRONT_EXPOSE_OTP" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"STOREFRONT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic           string `envconfig:"STOREFRONT_PUBSUB_EVENTS_TOPIC" default:"storefront-events"`
	AnalyticsSubscription string `envconfig:"STOREFRONT_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"storefront-events-analytics"`
	// AnalyticsMaxOutstanding caps unacked messages held by the analytics worker.
	AnalyticsMaxOutstanding int `envconfig:"STOREFRONT_PUBSUB_ANALYTICS_MAX_OUTSTANDING" default:"100"`
	AnalyticsGoroutines     int `envconfig:"STOREFRONT_PUBSUB_ANALYTICS_GOROUTINES" default:"2"`
}

type BigQueryConfig struct {
	Dataset     string `envconfig:"STOREFRONT_BIGQUERY_DATASET" default:"storefront"`
	EventsTable string `envconfig:"STOREFRONT_BIGQUERY_EVENTS_TABLE" default:"storefront_events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"STOREFRONT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"STOREFRONT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"STOREFRONT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"STOREFRONT_OUTBOX_RETENTION" default:"720h"`
	PublishTimeout time.Duration `envconfig:"STOREFRONT_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
	// ConsumerIdempotencyTTL is how long consumers remember processed event ids.
	ConsumerIdempotencyTTL time.Duration `envconfig:"STOREFRONT_OUTBOX_CONSUMER_IDEMPOTENCY_TTL" default:"168h"`
}

type MaintenanceConfig struct {
	Interval time.Duration `envconfig:"STOREFRONT_MAINTENANCE_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"STOREFRONT_MAINTENANCE_LOCK_TTL" default:"10m"`
	// CodePurgeInterval overrides Interval for the verification code purge.
	CodePurgeInterval time.Duration `envconfig:"STOREFRONT_MAINTENANCE_CODE_PURGE_INTERVAL" default:"15m"`
	// UsedCodeRetention keeps consumed verification codes around for audit before purging.
	UsedCodeRetention time.Duration `envconfig:"STOREFRONT_MAINTENANCE_USED_CODE_RETENTION" default:"24h"`
}
