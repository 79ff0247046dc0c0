package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "NOTEMARKET"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvAppEnv = "NOTEMARKET_APP_ENV"
	EnvDBDSN  = "NOTEMARKET_DB_DSN"
	EnvDBHost = "NOTEMARKET_DB_HOST"
	EnvDBUser = "NOTEMARKET_DB_USER"
	EnvDBName = "NOTEMARKET_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Wallet        WalletConfig
	OpenAI        OpenAIConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Outbox        OutboxConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if _, err := cfg.Wallet.Commission(); err != nil {
		return nil, err
	}
	if _, err := cfg.Wallet.PlatformAccountID(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"NOTEMARKET_APP_ENV" required:"true"`
	Port         string `envconfig:"NOTEMARKET_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NOTEMARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NOTEMARKET_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"NOTEMARKET_DB_DSN"`
	Driver string `envconfig:"NOTEMARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NOTEMARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"NOTEMARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NOTEMARKET_DB_USER"`
	LegacyPassword string `envconfig:"NOTEMARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"NOTEMARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"NOTEMARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NOTEMARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NOTEMARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NOTEMARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NOTEMARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NOTEMARKET_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NOTEMARKET_REDIS_ADDR"`
	Password     string        `envconfig:"NOTEMARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"NOTEMARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NOTEMARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NOTEMARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NOTEMARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NOTEMARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NOTEMARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"NOTEMARKET_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"NOTEMARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"NOTEMARKET_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"NOTEMARKET_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"NOTEMARKET_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"NOTEMARKET_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"NOTEMARKET_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"NOTEMARKET_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"NOTEMARKET_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"NOTEMARKET_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"NOTEMARKET_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"NOTEMARKET_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"NOTEMARKET_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"NOTEMARKET_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"NOTEMARKET_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"NOTEMARKET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"NOTEMARKET_AUTO_MIGRATE" default:"false"`
}

// WalletConfig holds the money-movement policy knobs. Every amount is in
// integer minor units (cents).
type WalletConfig struct {
	CommissionRate           string `envconfig:"NOTEMARKET_WALLET_COMMISSION_RATE" default:"0.15"`
	SubscriptionPriceCents   int64  `envconfig:"NOTEMARKET_SUBSCRIPTION_PRICE_CENTS" default:"47900"`
	SubscriptionDurationDays int    `envconfig:"NOTEMARKET_SUBSCRIPTION_DURATION_DAYS" default:"30"`
	PlatformUserID           string `envconfig:"NOTEMARKET_PLATFORM_USER_ID" default:"00000000-0000-0000-0000-000000000001"`
	TopUpMaxCents            int64  `envconfig:"NOTEMARKET_TOPUP_MAX_CENTS" default:"10000000"`
}

// Commission parses the configured commission rate and rejects rates outside [0, 1).
func (w WalletConfig) Commission() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(w.CommissionRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing commission rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("commission rate %s out of range [0, 1)", rate)
	}
	return rate, nil
}

// PlatformAccountID parses the configured platform account UUID.
func (w WalletConfig) PlatformAccountID() (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(w.PlatformUserID))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parsing platform user id: %w", err)
	}
	if id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("platform user id cannot be the zero uuid")
	}
	return id, nil
}

// SubscriptionDuration returns the configured subscription window.
func (w WalletConfig) SubscriptionDuration() time.Duration {
	days := w.SubscriptionDurationDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

type OpenAIConfig struct {
	APIKey  string        `envconfig:"NOTEMARKET_OPENAI_API_KEY"`
	Model   string        `envconfig:"NOTEMARKET_OPENAI_MODEL" default:"gpt-4o-mini"`
	BaseURL string        `envconfig:"NOTEMARKET_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Timeout time.Duration `envconfig:"NOTEMARKET_OPENAI_TIMEOUT" default:"30s"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"NOTEMARKET_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"NOTEMARKET_PUBSUB_DOMAIN_TOPIC" default:"notemarket-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"NOTEMARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"NOTEMARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"NOTEMARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"NOTEMARKET_CRON_INTERVAL" default:"24h"`
	LockKey  string        `envconfig:"NOTEMARKET_CRON_LOCK_KEY" default:"cron:daily"`
	LockTTL  time.Duration `envconfig:"NOTEMARKET_CRON_LOCK_TTL" default:"25h"`
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
