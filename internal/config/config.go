package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token store backends.
const (
	TokenStorePostgres = "postgres"
	TokenStoreRedis    = "redis"
	TokenStoreMemory   = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Links        LinksConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	BaseURL               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session and issuer credentials.
type AuthConfig struct {
	JWTSecret              string
	AccessTokenTTLMinutes  int
	RefreshTokenTTLMinutes int
	BcryptCost             int
	IssuerAPIKey           string
}

// LinksConfig controls access link lifetime and storage.
type LinksConfig struct {
	GeneralTTLHours         int
	AssignmentTTLHours      int
	TokenStoreBackend       string
	EvictionIntervalSeconds int
	CallTimeoutSeconds      int
	RedeemPath              string
}

// NotificationConfig configures link email delivery.
type NotificationConfig struct {
	EmailFrom string
}

// DevJWTSecret is the session signing key used when none is configured.
// It is only accepted when APP_ENV is development.
const DevJWTSecret = "dev-secret"

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "link-access-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			BaseURL:               strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:8080"), "/"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "links"),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:              getEnv("AUTH_JWT_SECRET", DevJWTSecret),
			AccessTokenTTLMinutes:  getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			RefreshTokenTTLMinutes: getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_MINUTES", 60*24*7),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 10),
			IssuerAPIKey:           os.Getenv("AUTH_ISSUER_API_KEY"),
		},
		Links: LinksConfig{
			// 30 days for both link kinds. Long for a bearer credential;
			// revisit before shortening invitation resend flows.
			GeneralTTLHours:         getEnvAsInt("LINK_GENERAL_TTL_HOURS", 720),
			AssignmentTTLHours:      getEnvAsInt("LINK_ASSIGNMENT_TTL_HOURS", 720),
			TokenStoreBackend:       strings.ToLower(getEnv("TOKEN_STORE_BACKEND", TokenStorePostgres)),
			EvictionIntervalSeconds: getEnvAsInt("LINK_EVICTION_INTERVAL_SECONDS", 300),
			CallTimeoutSeconds:      getEnvAsInt("LINK_CALL_TIMEOUT_SECONDS", 5),
			RedeemPath:              getEnv("LINK_REDEEM_PATH", "/auth/link"),
		},
		Notification: NotificationConfig{
			EmailFrom: getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Links.TokenStoreBackend {
	case TokenStorePostgres, TokenStoreRedis, TokenStoreMemory:
	default:
		return fmt.Errorf("invalid TOKEN_STORE_BACKEND %q", c.Links.TokenStoreBackend)
	}
	if c.Links.GeneralTTLHours <= 0 || c.Links.AssignmentTTLHours <= 0 {
		return fmt.Errorf("link TTLs must be positive")
	}
	if c.App.BaseURL == "" {
		return fmt.Errorf("APP_BASE_URL is required")
	}
	if !strings.HasPrefix(c.Links.RedeemPath, "/") {
		return fmt.Errorf("LINK_REDEEM_PATH must start with /")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}
	if c.Auth.JWTSecret == DevJWTSecret && !strings.EqualFold(c.App.Env, "development") {
		return fmt.Errorf("AUTH_JWT_SECRET must be set when APP_ENV is %q", c.App.Env)
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// GeneralTTL is the lifetime of links without a resource scope.
func (l LinksConfig) GeneralTTL() time.Duration {
	return time.Duration(l.GeneralTTLHours) * time.Hour
}

// AssignmentTTL is the lifetime of assignment-scoped links.
func (l LinksConfig) AssignmentTTL() time.Duration {
	return time.Duration(l.AssignmentTTLHours) * time.Hour
}

// EvictionInterval returns how often expired tokens are purged; zero disables it.
func (l LinksConfig) EvictionInterval() time.Duration {
	if l.EvictionIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(l.EvictionIntervalSeconds) * time.Second
}

// CallTimeout bounds each store or identity provider call during redemption.
func (l LinksConfig) CallTimeout() time.Duration {
	if l.CallTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(l.CallTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
