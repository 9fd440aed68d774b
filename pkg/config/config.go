// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds the environment driven configuration for the service.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"epoxy"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Version     string `env:"SERVICE_VERSION" envDefault:"0.1.0"`
	Port        int    `env:"PORT" envDefault:"8080"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// Upstream calls
	UserAgent      string        `env:"USER_AGENT" envDefault:"epoxy/0.1.0"`
	DefaultTimeout time.Duration `env:"DEFAULT_TIMEOUT" envDefault:"1s"`
	MaxConcurrency int           `env:"MAX_CONCURRENCY" envDefault:"0"`
	MaxBodyBytes   int64         `env:"MAX_BODY_BYTES" envDefault:"10485760"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Tracing
	TracingEnabled   bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTLPEndpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"false"`
	TraceSampleRatio float64 `env:"OTEL_SAMPLER_RATIO" envDefault:"0.1"`
}

// Load reads an optional .env file (path from ENV_FILE, default ".env")
// and parses environment variables into Config.
//
// Priority, highest first: environment variables, .env file, defaults.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be in 1..65535 (got %d)", c.Port))
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		errs = append(errs, errors.New("USER_AGENT is required"))
	}
	if c.DefaultTimeout <= 0 {
		errs = append(errs, fmt.Errorf("DEFAULT_TIMEOUT must be positive (got %s)", c.DefaultTimeout))
	}
	if c.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENCY must be >= 0 (got %d)", c.MaxConcurrency))
	}
	if c.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be >= 0 (got %d)", c.MaxBodyBytes))
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_SAMPLER_RATIO must be in [0,1] (got %g)", c.TraceSampleRatio))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
