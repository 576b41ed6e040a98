package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Push     PushConfig
	AI       AIConfig
	Notify   NotifyConfig
	Presence PresenceConfig
	Sync     SyncConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
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
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// PushConfig points at the external push-delivery service.
type PushConfig struct {
	Endpoint          string
	APIKey            string
	TimeoutSeconds    int
	MaxAttempts       int
	BackoffBaseMillis int
}

// AIConfig points at the AI completion collaborator.
type AIConfig struct {
	Endpoint       string
	APIKey         string
	TimeoutSeconds int
}

// NotifyConfig tunes the trigger queue.
type NotifyConfig struct {
	GroupingWindowSeconds int
	PollIntervalSeconds   int
	BatchSize             int
}

// PresenceConfig tunes typing indicators.
type PresenceConfig struct {
	TTLSeconds     int
	DebounceMillis int
}

// SyncConfig tunes client-sync reconciliation.
type SyncConfig struct {
	PendingWindowSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "thread-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Push: PushConfig{
			Endpoint:          getEnv("PUSH_ENDPOINT", ""),
			APIKey:            os.Getenv("PUSH_API_KEY"),
			TimeoutSeconds:    getEnvAsInt("PUSH_TIMEOUT_SECONDS", 10),
			MaxAttempts:       getEnvAsInt("PUSH_MAX_ATTEMPTS", 3),
			BackoffBaseMillis: getEnvAsInt("PUSH_BACKOFF_BASE_MILLIS", 200),
		},
		AI: AIConfig{
			Endpoint:       getEnv("AI_ENDPOINT", ""),
			APIKey:         os.Getenv("AI_API_KEY"),
			TimeoutSeconds: getEnvAsInt("AI_TIMEOUT_SECONDS", 20),
		},
		Notify: NotifyConfig{
			GroupingWindowSeconds: getEnvAsInt("NOTIFY_GROUPING_WINDOW_SECONDS", 120),
			PollIntervalSeconds:   getEnvAsInt("NOTIFY_POLL_INTERVAL_SECONDS", 2),
			BatchSize:             getEnvAsInt("NOTIFY_BATCH_SIZE", 20),
		},
		Presence: PresenceConfig{
			TTLSeconds:     getEnvAsInt("PRESENCE_TTL_SECONDS", 10),
			DebounceMillis: getEnvAsInt("PRESENCE_DEBOUNCE_MILLIS", 1500),
		},
		Sync: SyncConfig{
			PendingWindowSeconds: getEnvAsInt("SYNC_PENDING_WINDOW_SECONDS", 30),
		},
	}

	return cfg, nil
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

// GroupingWindow returns the dedupe time bucket width.
func (n NotifyConfig) GroupingWindow() time.Duration {
	if n.GroupingWindowSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(n.GroupingWindowSeconds) * time.Second
}

// PollInterval returns the trigger queue poll cadence.
func (n NotifyConfig) PollInterval() time.Duration {
	if n.PollIntervalSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(n.PollIntervalSeconds) * time.Second
}

// TTL returns the typing indicator lifetime.
func (p PresenceConfig) TTL() time.Duration {
	if p.TTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(p.TTLSeconds) * time.Second
}

// Debounce returns the minimum interval between typing writes per user.
func (p PresenceConfig) Debounce() time.Duration {
	if p.DebounceMillis <= 0 {
		return 1500 * time.Millisecond
	}
	return time.Duration(p.DebounceMillis) * time.Millisecond
}

// PendingWindow returns how long an optimistic entry waits for its
// server-confirmed record before the record is treated as new.
func (s SyncConfig) PendingWindow() time.Duration {
	if s.PendingWindowSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.PendingWindowSeconds) * time.Second
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
