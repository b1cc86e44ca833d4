package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
)

const defaultSecretKey = "change-me-in-production"

type Config struct {
	// HTTP Server
	Port               string   `env:"PORT" envDefault:"8080"`
	Environment        string   `env:"ENVIRONMENT" envDefault:"development"`
	APIPrefix          string   `env:"API_PREFIX" envDefault:"/api/v1"`
	FrontendURL        string   `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	LogLevel           string   `env:"LOG_LEVEL" envDefault:"info"`

	// Storage backend selection
	DataBackend   string `env:"DATA_BACKEND" envDefault:"memory"`
	SQLiteDBPath  string `env:"SQLITE_DB_PATH" envDefault:"./data/expenses.db"`
	PostgresURL   string `env:"POSTGRES_URL"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"family_expense_tracker"`

	// Auth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	SecretKey          string `env:"JWT_SECRET_KEY" envDefault:"change-me-in-production"`
	JWTExpirationHours int    `env:"JWT_EXPIRATION_HOURS" envDefault:"168"`

	// AMQP (optional)
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"family_expense"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"notifications"`

	// Notification worker
	NotifyWebhookURL     string        `env:"NOTIFY_WEBHOOK_URL"`
	NotifyWebhookTimeout time.Duration `env:"NOTIFY_WEBHOOK_TIMEOUT" envDefault:"5s"`
	TelegramBotToken     string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID       int64         `env:"TELEGRAM_CHAT_ID"`
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if len(cfg.CORSAllowedOrigins) == 0 && cfg.FrontendURL != "" {
		cfg.CORSAllowedOrigins = []string{cfg.FrontendURL}
	}
	return cfg, nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// JWTExpiration returns the token lifetime.
func (c *Config) JWTExpiration() time.Duration {
	return time.Duration(c.JWTExpirationHours) * time.Hour
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !strings.HasPrefix(c.APIPrefix, "/") || strings.HasSuffix(c.APIPrefix, "/") {
		errors = append(errors, fmt.Sprintf("invalid API prefix '%s': must start and not end with '/'", c.APIPrefix))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "postgres", "mongo"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.PostgresURL == "" {
			errors = append(errors, "POSTGRES_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.PostgresURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, fmt.Sprintf("invalid POSTGRES_URL '%s': must be a postgres:// URL", c.PostgresURL))
		}
	case "mongo":
		if c.MongoURI == "" {
			errors = append(errors, "MONGO_URI is required when using mongo backend")
		} else if !strings.HasPrefix(c.MongoURI, "mongodb://") && !strings.HasPrefix(c.MongoURI, "mongodb+srv://") {
			errors = append(errors, fmt.Sprintf("invalid MONGO_URI '%s': must be a mongodb:// URL", c.MongoURI))
		}
		if c.MongoDatabase == "" {
			errors = append(errors, "MONGO_DATABASE cannot be empty when using mongo backend")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate auth configuration
	if c.SecretKey == "" {
		errors = append(errors, "JWT_SECRET_KEY cannot be empty")
	} else if c.IsProduction() && (c.SecretKey == defaultSecretKey || len(c.SecretKey) < 32) {
		errors = append(errors, "JWT_SECRET_KEY must be changed and at least 32 characters in production")
	}
	if c.JWTExpirationHours < 1 {
		errors = append(errors, fmt.Sprintf("invalid JWT expiration %d hours: must be at least 1", c.JWTExpirationHours))
	}
	if c.IsProduction() && c.GoogleClientID == "" {
		errors = append(errors, "GOOGLE_CLIENT_ID is required in production")
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1", c.RateLimitPerMinute))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateWorker checks the settings the notification worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the notification worker")
	}
	if c.NotifyWebhookURL == "" && c.TelegramBotToken == "" {
		errors = append(errors, "NOTIFY_WEBHOOK_URL or TELEGRAM_BOT_TOKEN is required for the notification worker")
	}
	if c.NotifyWebhookURL != "" {
		if u, err := url.Parse(c.NotifyWebhookURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid NOTIFY_WEBHOOK_URL '%s': must be http or https", c.NotifyWebhookURL))
		}
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		errors = append(errors, "TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.NotifyWebhookTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid webhook timeout %v: must be at least 1 second", c.NotifyWebhookTimeout))
	}
	if len(errors) > 0 {
		return fmt.Errorf("worker configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
