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
	Fines         FinesConfig
	Cron          CronConfig
	GoogleBooks   GoogleBooksConfig
	Assistant     AssistantConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LIBRIS_APP_ENV" required:"true"`
	Port         string `envconfig:"LIBRIS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LIBRIS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LIBRIS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LIBRIS_DB_DSN"`
	Driver string `envconfig:"LIBRIS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LIBRIS_DB_HOST"`
	LegacyPort     int    `envconfig:"LIBRIS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LIBRIS_DB_USER"`
	LegacyPassword string `envconfig:"LIBRIS_DB_PASSWORD"`
	LegacyName     string `envconfig:"LIBRIS_DB_NAME"`
	LegacySSLMode  string `envconfig:"LIBRIS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LIBRIS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LIBRIS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LIBRIS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LIBRIS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LIBRIS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LIBRIS_REDIS_ADDR"`
	Password     string        `envconfig:"LIBRIS_REDIS_PASSWORD"`
	DB           int           `envconfig:"LIBRIS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LIBRIS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LIBRIS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LIBRIS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LIBRIS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LIBRIS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LIBRIS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LIBRIS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LIBRIS_JWT_EXPIRATION_MINUTES" required:"true"`
	SessionTTLMinutes int    `envconfig:"LIBRIS_SESSION_TTL_MINUTES" default:"10080"`
}

// SessionTTL returns the server-side session lifetime configured in minutes.
func (j JWTConfig) SessionTTL() time.Duration {
	if j.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.SessionTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LIBRIS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LIBRIS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"LIBRIS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LIBRIS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LIBRIS_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"LIBRIS_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"LIBRIS_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"LIBRIS_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"LIBRIS_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"LIBRIS_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"LIBRIS_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LIBRIS_AUTO_MIGRATE" default:"false"`
}

// FinesConfig drives the late-fee accrual shown on the overdue report.
type FinesConfig struct {
	DailyRate string `envconfig:"LIBRIS_FINES_DAILY_RATE" default:"0.50"`
	Currency  string `envconfig:"LIBRIS_FINES_CURRENCY" default:"PLN"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"LIBRIS_CRON_INTERVAL" default:"1h"`
}

type GoogleBooksConfig struct {
	APIKey       string `envconfig:"LIBRIS_GOOGLE_BOOKS_API_KEY"`
	LangRestrict string `envconfig:"LIBRIS_GOOGLE_BOOKS_LANG" default:"pl"`
}

type AssistantConfig struct {
	APIKey          string `envconfig:"LIBRIS_GEMINI_API_KEY"`
	Model           string `envconfig:"LIBRIS_GEMINI_MODEL" default:"gemini-2.5-flash"`
	MaxOutputTokens int    `envconfig:"LIBRIS_GEMINI_MAX_OUTPUT_TOKENS" default:"1024"`
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
