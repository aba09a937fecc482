/*
Package configs loads sockchat's runtime configuration from the environment.

An optional .env file is read first (existing variables win), then the variables are parsed
into AppConfig with caarlos0/env and validated. Any error returned by LoadConfig is a
configuration error: the process must not start serving.
*/
package configs

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrConfiguration wraps every error returned by LoadConfig.
var ErrConfiguration = errors.New("configuration error")

// DatabaseKind names the backend selected by DATABASE_URL's scheme.
type DatabaseKind string

const (
	DatabaseMongo    DatabaseKind = "mongo"
	DatabasePostgres DatabaseKind = "postgres"
	DatabaseMemory   DatabaseKind = "memory"
)

const (
	SessionBackendDatabase = "database"
	SessionBackendRedis    = "redis"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        int    `env:"PORT" envDefault:"3000"`
	PublicDir   string `env:"PUBLIC_DIR" envDefault:"public"`

	// Database Settings
	DatabaseURL   string `env:"DATABASE_URL,required,notEmpty"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"chat"`

	// Session Settings
	SessionSecret       string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionCookieName   string        `env:"SESSION_COOKIE_NAME" envDefault:"chat.sid"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"336h"`
	SessionBackend      string        `env:"SESSION_BACKEND" envDefault:"database"`

	// Redis / Cluster Settings
	RedisURL    string `env:"REDIS_URL"`
	ClusterMode bool   `env:"CLUSTER_MODE" envDefault:"false"`

	// Security Settings
	AllowedOrigins        []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	RegisterPowDifficulty int      `env:"REGISTER_POW_DIFFICULTY" envDefault:"0"`

	// Public asset bucket (optional, all or nothing)
	AssetsS3Bucket          string `env:"ASSETS_S3_BUCKET"`
	AssetsS3Endpoint        string `env:"ASSETS_S3_ENDPOINT"`
	AssetsS3AccessKeyID     string `env:"ASSETS_S3_ACCESS_KEY_ID"`
	AssetsS3SecretAccessKey string `env:"ASSETS_S3_SECRET_ACCESS_KEY"`
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*AppConfig, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	return parse(env.Options{})
}

// LoadFromMap parses cfg from vars instead of the process environment.
func LoadFromMap(vars map[string]string) (*AppConfig, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*AppConfig, error) {
	cfg := &AppConfig{}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	cfg.AllowedOrigins = cleanList(cfg.AllowedOrigins)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}

	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port number %d is outside the allowed range (1024-65535)", c.Port)
	}

	if len(c.SessionSecret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 characters")
	}

	if c.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}

	if _, err := c.DatabaseKind(); err != nil {
		return err
	}

	switch c.SessionBackend {
	case SessionBackendDatabase:
	case SessionBackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}

	if c.ClusterMode && c.RedisURL == "" {
		return errors.New("REDIS_URL is required when CLUSTER_MODE is enabled")
	}

	if c.RegisterPowDifficulty < 0 || c.RegisterPowDifficulty > 6 {
		return fmt.Errorf("REGISTER_POW_DIFFICULTY %d is outside 0-6", c.RegisterPowDifficulty)
	}

	assets := []string{c.AssetsS3Bucket, c.AssetsS3Endpoint, c.AssetsS3AccessKeyID, c.AssetsS3SecretAccessKey}
	set := 0
	for _, v := range assets {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != len(assets) {
		return errors.New("ASSETS_S3_* variables must be set together")
	}

	return nil
}

// IsDevelopment reports whether the process runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// AssetsFromS3 reports whether /public is served from the configured bucket.
func (c *AppConfig) AssetsFromS3() bool {
	return c.AssetsS3Bucket != ""
}

// DatabaseKind derives the credential backend from DATABASE_URL.
func (c *AppConfig) DatabaseKind() (DatabaseKind, error) {
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	switch u.Scheme {
	case "mongodb", "mongodb+srv":
		return DatabaseMongo, nil
	case "postgres", "postgresql":
		return DatabasePostgres, nil
	case "memory":
		return DatabaseMemory, nil
	default:
		return "", fmt.Errorf("unsupported DATABASE_URL scheme %q", u.Scheme)
	}
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
