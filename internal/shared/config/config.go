package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	EventStore EventStoreConfig
	Auth       AuthConfig
	Authz      AuthzConfig
	Metrics    MetricsConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// EventStoreConfig tunes the Postgres-backed event store and the
// projection engine's polling behavior.
type EventStoreConfig struct {
	PollInterval        time.Duration
	DefaultBatchSize     int
	MaxConcurrencyRetries int
	EnableLocking        bool
}

type AuthConfig struct {
	JWTIssuer  string
	JWTSecret  string
	JWTKeyPath string
}

// AuthzConfig points the command pipeline's authz.Checker at an OPA
// sidecar/service. Enabled=false permits every check, for local
// development with no policy engine running.
type AuthzConfig struct {
	Enabled bool
	BaseURL string
	Policy  string
}

type MetricsConfig struct {
	Enabled bool
	Port    int
}

type LoggingConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "iamcore"),
			Password:        getEnv("DB_PASSWORD", "iamcore"),
			Database:        getEnv("DB_NAME", "iamcore"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConns:        int32(getEnvInt("DB_MAX_CONNS", 25)),
			MinConns:        int32(getEnvInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime: time.Duration(getEnvInt("DB_MAX_CONN_LIFETIME_MIN", 60)) * time.Minute,
			MaxConnIdleTime: time.Duration(getEnvInt("DB_MAX_CONN_IDLE_MIN", 30)) * time.Minute,
		},
		EventStore: EventStoreConfig{
			PollInterval:          time.Duration(getEnvInt("PROJECTION_POLL_INTERVAL_MS", 500)) * time.Millisecond,
			DefaultBatchSize:      getEnvInt("PROJECTION_BATCH_SIZE", 200),
			MaxConcurrencyRetries: getEnvInt("COMMAND_MAX_CONCURRENCY_RETRIES", 3),
			EnableLocking:         getEnvBool("PROJECTION_ENABLE_LOCKING", true),
		},
		Auth: AuthConfig{
			JWTIssuer:  getEnv("JWT_ISSUER", "iamcore"),
			JWTSecret:  getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			JWTKeyPath: getEnv("JWT_KEY_PATH", ""),
		},
		Authz: AuthzConfig{
			Enabled: getEnvBool("OPA_ENABLED", false),
			BaseURL: getEnv("OPA_URL", "http://localhost:8181"),
			Policy:  getEnv("OPA_POLICY", "iamcore/authz/allow"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvBool("LOG_PRETTY", false),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
