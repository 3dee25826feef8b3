// Package config handles application configuration loading from environment
// variables. An optional .env file in the working directory is read first;
// variables already set in the environment win over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// defaultDBPassword is refused in production.
const defaultDBPassword = "changeme"

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string `envconfig:"APP_HOST" default:"0.0.0.0"`
	Port string `envconfig:"APP_PORT" default:"8080"`
	Env  string `envconfig:"APP_ENV" default:"development"` // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	DBPort     string `envconfig:"POSTGRES_PORT" default:"5432"`
	DBUser     string `envconfig:"POSTGRES_USER" default:"inkpress"`
	DBPassword string `envconfig:"POSTGRES_PASSWORD" default:"changeme"`
	DBName     string `envconfig:"POSTGRES_DB" default:"inkpress"`

	// Valkey (Redis-compatible cache)
	ValkeyHost     string `envconfig:"VALKEY_HOST" default:"localhost"`
	ValkeyPort     string `envconfig:"VALKEY_PORT" default:"6379"`
	ValkeyPassword string `envconfig:"VALKEY_PASSWORD"`

	// S3-compatible object storage; media uploads are disabled when unset.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"inkpress-media"`
	S3PublicURL string `envconfig:"S3_PUBLIC_URL"`

	// Background jobs and caching
	TagPruneSchedule string        `envconfig:"TAG_PRUNE_SCHEDULE" default:"0 3 * * *"`
	ListCacheTTL     time.Duration `envconfig:"LIST_CACHE_TTL" default:"2m"`
	LoginRateLimit   int           `envconfig:"LOGIN_RATE_LIMIT" default:"10"` // attempts per minute per IP
}

// Load reads configuration from .env and the environment, applying
// development defaults. Returns an error if critical values are missing
// in production mode.
func Load() (*Config, error) {
	return load(".env")
}

func load(dotenv string) (*Config, error) {
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", dotenv, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == defaultDBPassword {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
	}
	if cfg.LoginRateLimit < 1 {
		return nil, fmt.Errorf("LOGIN_RATE_LIMIT must be positive")
	}

	return &cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// ValkeyAddr returns the Valkey address (host:port).
func (c *Config) ValkeyAddr() string {
	return net.JoinHostPort(c.ValkeyHost, c.ValkeyPort)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
