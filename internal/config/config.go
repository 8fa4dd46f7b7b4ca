// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Server    ServerConfig   `envPrefix:"SERVER_"`
	Database  DatabaseConfig `envPrefix:"DB_"`
	JWT       JWTConfig      `envPrefix:"JWT_"`
	License   LicenseConfig  `envPrefix:"LICENSE_"`
	Webhook   WebhookConfig
	RateLimit RateLimitConfig `envPrefix:"RATE_"`
	CORS      CORSConfig      `envPrefix:"CORS_"`
	I18n      I18nConfig
}

type ServerConfig struct {
	Port         string `env:"PORT" envDefault:"3000"`
	Host         string `env:"HOST" envDefault:"localhost"`
	ReadTimeout  int    `env:"READ_TIMEOUT" envDefault:"15"`
	WriteTimeout int    `env:"WRITE_TIMEOUT" envDefault:"15"`
	IdleTimeout  int    `env:"IDLE_TIMEOUT" envDefault:"60"`
	// TrustedProxies lists proxy addresses or CIDRs whose X-Forwarded-For is
	// believed. Empty means none.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type DatabaseConfig struct {
	Driver       string `env:"DRIVER" envDefault:"postgres"`
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         string `env:"PORT" envDefault:"5432"`
	User         string `env:"USER" envDefault:"postgres"`
	Password     string `env:"PASSWORD"`
	Database     string `env:"NAME" envDefault:"license_server"`
	SSLMode      string `env:"SSL_MODE" envDefault:"disable"`
	SQLitePath   string `env:"SQLITE_PATH" envDefault:"database.sqlite"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"25"`
	MaxLifetime  int    `env:"MAX_LIFETIME" envDefault:"300"`
	LogLevel     string `env:"LOG_LEVEL" envDefault:"silent"`
}

type JWTConfig struct {
	SecretKey      string `env:"SECRET" envDefault:"your-secret-key-change-in-production"`
	AccessTokenTTL int    `env:"ACCESS_TTL" envDefault:"24"` // in hours
}

type LicenseConfig struct {
	DefaultTermDays   int `env:"DEFAULT_TERM_DAYS" envDefault:"365"`
	DefaultMaxDomains int `env:"DEFAULT_MAX_DOMAINS" envDefault:"1"`
}

type WebhookConfig struct {
	Secret              string `env:"WEBHOOK_SECRET"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
}

// Requests per minute per client IP
type RateLimitConfig struct {
	ActivatePerMinute int `env:"ACTIVATE_PER_MIN" envDefault:"30"`
	CheckPerMinute    int `env:"CHECK_PER_MIN" envDefault:"60"`
	AdminPerMinute    int `env:"ADMIN_PER_MIN" envDefault:"20"`
	WebhookPerMinute  int `env:"WEBHOOK_PER_MIN" envDefault:"60"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
}

type I18nConfig struct {
	DefaultLocale string `env:"DEFAULT_LOCALE" envDefault:"en"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return config, config.Validate()
}

func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWT.SecretKey == defaultJWTSecret {
			return fmt.Errorf("JWT secret key must be changed in production")
		}
		if c.Webhook.Secret == "" {
			return fmt.Errorf("webhook secret is required in production")
		}
		if c.Database.Driver == "postgres" && c.Database.Password == "" {
			return fmt.Errorf("database password is required in production")
		}
	}

	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.License.DefaultTermDays < 1 {
		return fmt.Errorf("license default term must be at least one day")
	}
	if c.License.DefaultMaxDomains < 1 {
		return fmt.Errorf("license default max domains must be at least 1")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenTTL) * time.Hour
}
