package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config holds all configuration for the Scriptbook server
type Config struct {
	// Server configuration
	HTTPPort int    `env:"SCRIPTBOOK_HTTP_PORT" envDefault:"8080"`
	GRPCPort int    `env:"SCRIPTBOOK_GRPC_PORT" envDefault:"9090"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Run requests per second allowed per client; 0 disables the limit
	RunRateLimit float64 `env:"SCRIPTBOOK_RUN_RATE_LIMIT" envDefault:"0"`
	RunRateBurst int     `env:"SCRIPTBOOK_RUN_RATE_BURST" envDefault:"5"`

	// StorageBackend selects the event bus and stores: memory or redis
	StorageBackend string `env:"SCRIPTBOOK_STORAGE" envDefault:"memory"`

	// Redis configuration
	Redis RedisConfig

	// Interpreter configuration
	Interpreter InterpreterConfig

	// Timeouts
	Timeouts TimeoutConfig
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

	// Streams settings
	ConsumerGroup string `env:"REDIS_CONSUMER_GROUP" envDefault:"scriptbook"`
	ConsumerName  string `env:"REDIS_CONSUMER_NAME"`
	StreamMaxLen  int64  `env:"REDIS_STREAM_MAX_LEN" envDefault:"10000"`
}

// InterpreterConfig holds interpreter service configuration
type InterpreterConfig struct {
	// Executor selects the executor implementation
	Executor string   `env:"INTERPRETER_EXECUTOR" envDefault:"process"`
	Command  []string `env:"INTERPRETER_COMMAND" envSeparator:" " envDefault:"python3"`
	Workdir  string   `env:"INTERPRETER_WORKDIR"`
	// CaptureFigures wraps Command in the Python runner that saves pyplot figures
	CaptureFigures bool `env:"INTERPRETER_CAPTURE_FIGURES" envDefault:"true"`

	// Embedded runs the worker pool inside the server process
	Embedded            bool          `env:"INTERPRETER_EMBEDDED" envDefault:"true"`
	PoolSize            int           `env:"INTERPRETER_POOL_SIZE" envDefault:"4"`
	HealthCheckInterval time.Duration `env:"INTERPRETER_HEALTH_CHECK_INTERVAL" envDefault:"30s"`
}

// TimeoutConfig holds the run deadlines
type TimeoutConfig struct {
	SoftTimeout     time.Duration `env:"TIMEOUT_SOFT" envDefault:"5s"`
	HardCleanup     time.Duration `env:"TIMEOUT_HARD_CLEANUP" envDefault:"6s"`
	InterCellDelay  time.Duration `env:"RUN_ALL_DELAY" envDefault:"100ms"`
	ResultTTL       time.Duration `env:"RESULT_TTL" envDefault:"10m"`
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

	if c.RunRateLimit < 0 {
		return fmt.Errorf("run rate limit must not be negative")
	}

	switch c.StorageBackend {
	case StorageMemory:
		if !c.Interpreter.Embedded {
			return fmt.Errorf("memory storage requires an embedded interpreter")
		}
	case StorageRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s (must be memory or redis)", c.StorageBackend)
	}

	// Validate interpreter config
	if len(c.Interpreter.Command) == 0 {
		return fmt.Errorf("interpreter command is required")
	}
	if c.Interpreter.PoolSize < 1 {
		return fmt.Errorf("interpreter pool size must be at least 1")
	}

	// Validate timeouts
	if c.Timeouts.SoftTimeout <= 0 {
		return fmt.Errorf("soft timeout must be positive")
	}
	if c.Timeouts.HardCleanup < c.Timeouts.SoftTimeout {
		return fmt.Errorf("hard cleanup (%s) must not be shorter than the soft timeout (%s)",
			c.Timeouts.HardCleanup, c.Timeouts.SoftTimeout)
	}
	if c.Timeouts.InterCellDelay < 0 {
		return fmt.Errorf("run-all delay must not be negative")
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

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetGRPCAddr returns the gRPC server address
func (c *Config) GetGRPCAddr() string {
	return fmt.Sprintf(":%d", c.GRPCPort)
}
