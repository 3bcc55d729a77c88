package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix scopes every environment variable the service reads.
	EnvPrefix = "POOLCART"

	AppEnvDev  = "development"
	AppEnvProd = "production"

	EnvDBDSN  = "POOLCART_DB_DSN"
	EnvDBHost = "POOLCART_DB_HOST"
	EnvDBUser = "POOLCART_DB_USER"
	EnvDBName = "POOLCART_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Idempotency  IdempotencyConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseMemoryStore {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"POOLCART_APP_ENV" required:"true"`
	Port         string `envconfig:"POOLCART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"POOLCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POOLCART_LOG_WARN_STACK" default:"false"`

	// CORSOrigins lists deployed frontend origins allowed on top of the
	// local-dev defaults.
	CORSOrigins []string `envconfig:"POOLCART_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"POOLCART_DB_DSN"`
	Driver string `envconfig:"POOLCART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"POOLCART_DB_HOST"`
	LegacyPort     int    `envconfig:"POOLCART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POOLCART_DB_USER"`
	LegacyPassword string `envconfig:"POOLCART_DB_PASSWORD"`
	LegacyName     string `envconfig:"POOLCART_DB_NAME"`
	LegacySSLMode  string `envconfig:"POOLCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POOLCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POOLCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POOLCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POOLCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POOLCART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"POOLCART_REDIS_ADDR"`
	Password     string        `envconfig:"POOLCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"POOLCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POOLCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POOLCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POOLCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POOLCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POOLCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"POOLCART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"POOLCART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"POOLCART_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	// UseMemoryStore swaps the SQL storage backend for the in-process one.
	// Meant for ephemeral deployments and local smoke testing.
	UseMemoryStore bool `envconfig:"POOLCART_USE_MEMORY_STORE" default:"false"`
	UseSQLite      bool `envconfig:"POOLCART_USE_SQLITE" default:"false"`
	AutoMigrate    bool `envconfig:"POOLCART_AUTO_MIGRATE" default:"false"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"POOLCART_IDEMPOTENCY_TTL" default:"24h"`
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
