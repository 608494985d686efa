// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/raulbatres90/challenge-estudiantes/internal/core"
	"github.com/raulbatres90/challenge-estudiantes/internal/store"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envDefault:"8080" validate:"min=1,max=65535"`

	// ReadTimeout is the maximum duration for reading request body (default: 30s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"30s" validate:"gte=0"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s" validate:"gte=0"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s" validate:"gte=0"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s" validate:"gt=0"`

	// RequestTimeout is the middleware timeout for requests (default: 2m)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"2m" validate:"gt=0"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP and X-Forwarded-For
	// headers are honoured. Empty means the headers are ignored.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// RateLimit is the number of requests allowed per client IP per minute.
	// Zero disables rate limiting (default: 100)
	RateLimit int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"100" validate:"gte=0"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// DB_URL is accepted when DATABASE_URL is not set.
	URL string `env:"DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" envDefault:"10" validate:"gt=0"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" envDefault:"2" validate:"gte=0"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h" validate:"gte=0"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m" validate:"gte=0"`

	// MigrateOnStart applies pending migrations when the server starts (default: true)
	MigrateOnStart bool `env:"DB_MIGRATE_ON_START" envDefault:"true"`
}

// ImportConfig holds student import settings.
type ImportConfig struct {
	// MaxFileSize is the maximum allowed upload size in bytes (default: 10MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" envDefault:"10485760" validate:"gt=0"`

	// MaxConcurrent is the maximum number of parallel imports (default: 1)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" envDefault:"1" validate:"gt=0"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" envDefault:"30s" validate:"gt=0"`

	// InsertWorkers is the number of parallel inserts per import (default: 1)
	InsertWorkers int `env:"IMPORT_INSERT_WORKERS" envDefault:"1" validate:"min=1,max=32"`

	// ReserveRejectedKeys makes a name or external id that passed its own
	// check count as taken even when the row is rejected for another field
	// (default: true)
	ReserveRejectedKeys bool `env:"IMPORT_RESERVE_REJECTED_KEYS" envDefault:"true"`

	// KeyLoadTimeout bounds loading the existing names and ids before
	// validation. Inserts are not bounded (default: 1m)
	KeyLoadTimeout time.Duration `env:"IMPORT_KEY_LOAD_TIMEOUT" envDefault:"1m" validate:"gt=0"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn warning error"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint (default: true)
	Enabled bool `env:"METRICS_ENABLED" envDefault:"true"`

	// Path is where metrics are served (default: /metrics)
	Path string `env:"METRICS_PATH" envDefault:"/metrics" validate:"startswith=/"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// PoolConfig returns the connection pool settings.
func (c *DatabaseConfig) PoolConfig() store.PoolConfig {
	return store.PoolConfig{
		URL:             c.URL,
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		MaxConnIdleTime: c.MaxConnIdleTime,
	}
}

// ReservationPolicy maps ReserveRejectedKeys to the validator policy.
func (c *ImportConfig) ReservationPolicy() core.ReservationPolicy {
	if c.ReserveRejectedKeys {
		return core.ReserveOnFieldPass
	}
	return core.ReserveOnAccept
}

// ServiceConfig returns the import service settings.
func (c *ImportConfig) ServiceConfig() core.ServiceConfig {
	return core.ServiceConfig{
		InsertWorkers:     c.InsertWorkers,
		ReservationPolicy: c.ReservationPolicy(),
		MaxConcurrent:     c.MaxConcurrent,
		MaxWait:           c.MaxWaitTime,
		KeyLoadTimeout:    c.KeyLoadTimeout,
	}
}
