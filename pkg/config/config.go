package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Quota         QuotaConfig
	LemonSqueezy  LemonSqueezyConfig
	OpenAI        OpenAIConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Quota.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.LemonSqueezy.WebhookSecret) == "" {
		return nil, fmt.Errorf("%s must not be blank", EnvLemonSqueezyWebhookSecret)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"REVOFY_APP_ENV" required:"true"`
	Port         string `envconfig:"REVOFY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"REVOFY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REVOFY_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"REVOFY_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"REVOFY_DB_DSN"`

	LegacyHost     string `envconfig:"REVOFY_DB_HOST"`
	LegacyPort     int    `envconfig:"REVOFY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"REVOFY_DB_USER"`
	LegacyPassword string `envconfig:"REVOFY_DB_PASSWORD"`
	LegacyName     string `envconfig:"REVOFY_DB_NAME"`
	LegacySSLMode  string `envconfig:"REVOFY_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"REVOFY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REVOFY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REVOFY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REVOFY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REVOFY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"REVOFY_REDIS_ADDR"`
	Password     string        `envconfig:"REVOFY_REDIS_PASSWORD"`
	DB           int           `envconfig:"REVOFY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REVOFY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REVOFY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REVOFY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REVOFY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REVOFY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"REVOFY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"REVOFY_JWT_ISSUER" default:"revofy"`
	ExpirationMinutes int    `envconfig:"REVOFY_JWT_EXPIRATION_MINUTES" default:"20160"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"REVOFY_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"REVOFY_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"REVOFY_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"REVOFY_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"REVOFY_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow      time.Duration `envconfig:"REVOFY_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"REVOFY_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"REVOFY_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow     time.Duration `envconfig:"REVOFY_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit int           `envconfig:"REVOFY_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit    int           `envconfig:"REVOFY_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"REVOFY_AUTO_MIGRATE" default:"false"`
}

// QuotaConfig holds the free-tier usage budget.
type QuotaConfig struct {
	DailyLimit      int64 `envconfig:"REVOFY_QUOTA_DAILY_LIMIT" default:"100"`
	MonthlyLimit    int64 `envconfig:"REVOFY_QUOTA_MONTHLY_LIMIT" default:"1000"`
	FreeTierEnabled bool  `envconfig:"REVOFY_QUOTA_FREE_TIER_ENABLED" default:"true"`
}

// Validate rejects limits that would make every request fail.
func (q QuotaConfig) Validate() error {
	if q.DailyLimit <= 0 {
		return fmt.Errorf("%s must be positive, got %d", EnvQuotaDailyLimit, q.DailyLimit)
	}
	if q.MonthlyLimit <= 0 {
		return fmt.Errorf("%s must be positive, got %d", EnvQuotaMonthlyLimit, q.MonthlyLimit)
	}
	return nil
}

type LemonSqueezyConfig struct {
	WebhookSecret  string        `envconfig:"REVOFY_LEMONSQUEEZY_WEBHOOK_SECRET" required:"true"`
	CheckoutURL    string        `envconfig:"REVOFY_LEMONSQUEEZY_CHECKOUT_URL"`
	EventReplayTTL time.Duration `envconfig:"REVOFY_LEMONSQUEEZY_EVENT_REPLAY_TTL" default:"72h"`
}

type OpenAIConfig struct {
	APIKey  string        `envconfig:"REVOFY_OPENAI_API_KEY"`
	BaseURL string        `envconfig:"REVOFY_OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
	Model   string        `envconfig:"REVOFY_OPENAI_MODEL" default:"gpt-4o-mini"`
	Timeout time.Duration `envconfig:"REVOFY_OPENAI_TIMEOUT" default:"60s"`
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
