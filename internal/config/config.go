package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage and events backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds all configuration for the Rover event service
type Config struct {
	// Server configuration
	HTTPPort int    `env:"ROVER_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"ROVER_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Backend API configuration
	API APIConfig

	// Storage configuration
	Storage StorageConfig

	// Events configuration
	Events EventsConfig

	// Redis configuration
	Redis RedisConfig

	// Postgres configuration
	Postgres PostgresConfig

	// Device configuration
	Device DeviceConfig

	// Worker configuration
	Workers WorkerConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// APIConfig holds the Rover backend connection settings
type APIConfig struct {
	URL              string        `env:"ROVER_API_URL" envDefault:"https://api.rover.io/v1"`
	ApplicationToken string        `env:"ROVER_APPLICATION_TOKEN"`
	Timeout          time.Duration `env:"ROVER_API_TIMEOUT" envDefault:"30s"`
}

// StorageConfig selects where pipeline snapshots and device data live
type StorageConfig struct {
	Backend  string        `env:"STORAGE_BACKEND" envDefault:"memory"`
	StateTTL time.Duration `env:"STATE_TTL" envDefault:"24h"`
}

// EventsConfig selects the lifecycle event bus
type EventsConfig struct {
	Backend  string `env:"EVENTS_BACKEND" envDefault:"memory"`
	Group    string `env:"EVENTS_CONSUMER_GROUP" envDefault:"rover"`
	Consumer string `env:"EVENTS_CONSUMER_NAME"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASS"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`

	// Connection pool settings
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// PostgresConfig holds Postgres connection configuration
type PostgresConfig struct {
	URL      string `env:"POSTGRES_URL"`
	MaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
}

// DeviceConfig describes the device the service reports for
type DeviceConfig struct {
	BluetoothEnabled bool `env:"DEVICE_BLUETOOTH_ENABLED" envDefault:"true"`
}

// WorkerConfig holds worker pool configuration
type WorkerConfig struct {
	// PoolSize is the number of workers running pipeline nodes
	PoolSize            int           `env:"WORKER_POOL_SIZE" envDefault:"4"`
	UnorderedPoolSize   int           `env:"WORKER_UNORDERED_POOL_SIZE" envDefault:"4"`
	HealthCheckInterval time.Duration `env:"WORKER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"TIMEOUT_SHUTDOWN" envDefault:"30s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.GRPCPort < 1 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPCPort)
	}

	// Validate backend API config
	if c.API.ApplicationToken == "" {
		return fmt.Errorf("application token is required")
	}
	u, err := url.Parse(c.API.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API URL: %q", c.API.URL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API timeout must be positive")
	}

	// Validate backends
	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	case BackendPostgres:
		if c.Postgres.URL == "" {
			return fmt.Errorf("postgres URL is required for the postgres storage backend")
		}
		if c.Postgres.MaxConns < 1 {
			return fmt.Errorf("postgres max connections must be at least 1")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s (must be memory, redis, or postgres)", c.Storage.Backend)
	}
	switch c.Events.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported events backend: %s (must be memory or redis)", c.Events.Backend)
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	// Validate worker config
	if c.Workers.PoolSize < 1 {
		return fmt.Errorf("worker pool size must be at least 1")
	}
	if c.Workers.UnorderedPoolSize < 1 {
		return fmt.Errorf("unordered worker pool size must be at least 1")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	return nil
}

// UsesRedis reports whether any backend needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Storage.Backend == BackendRedis || c.Events.Backend == BackendRedis
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
