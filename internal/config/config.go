package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the server configuration.
type Config struct {
	Env              string
	Port             string
	DatabaseDriver   string
	DatabaseDSN      string
	BcryptCost       int
	RabbitMQURL      string
	RabbitMQExchange string
	AllowedOrigins   string
	ShutdownTimeout  time.Duration
}

// ClientConfig configures the API client and the list coordinator.
type ClientConfig struct {
	APIURL           string
	PageSize         int
	SearchDebounce   time.Duration
	RequestTimeout   time.Duration
	RabbitMQURL      string
	RabbitMQExchange string
}

// IsDevelopment reports whether APP_ENV selects the development logger.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

// Load reads the server configuration from the environment.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_PORT", ":3001")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("BCRYPT_COST", 10)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "users.events")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.AutomaticEnv()

	cfg := Config{
		Env:              v.GetString("APP_ENV"),
		Port:             v.GetString("APP_PORT"),
		DatabaseDriver:   strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:      v.GetString("DATABASE_DSN"),
		BcryptCost:       v.GetInt("BCRYPT_COST"),
		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		RabbitMQExchange: v.GetString("RABBITMQ_EXCHANGE"),
		AllowedOrigins:   v.GetString("CORS_ALLOWED_ORIGINS"),
		ShutdownTimeout:  v.GetDuration("SHUTDOWN_TIMEOUT"),
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite", "memory":
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	if cfg.DatabaseDriver == "postgres" && cfg.DatabaseDSN == "" {
		return Config{}, fmt.Errorf("DATABASE_DSN is required for the postgres driver")
	}
	if !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}
	return cfg, nil
}

// LoadClient reads the client configuration from the environment.
func LoadClient() (ClientConfig, error) {
	v := viper.New()
	v.SetDefault("API_URL", "http://localhost:3001")
	v.SetDefault("PAGE_SIZE", 15)
	v.SetDefault("SEARCH_DEBOUNCE", "300ms")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_EXCHANGE", "users.events")
	v.AutomaticEnv()

	cfg := ClientConfig{
		APIURL:           strings.TrimRight(v.GetString("API_URL"), "/"),
		PageSize:         v.GetInt("PAGE_SIZE"),
		SearchDebounce:   v.GetDuration("SEARCH_DEBOUNCE"),
		RequestTimeout:   v.GetDuration("REQUEST_TIMEOUT"),
		RabbitMQURL:      v.GetString("RABBITMQ_URL"),
		RabbitMQExchange: v.GetString("RABBITMQ_EXCHANGE"),
	}
	if cfg.PageSize < 1 {
		return ClientConfig{}, fmt.Errorf("PAGE_SIZE must be at least 1, got %d", cfg.PageSize)
	}
	if cfg.SearchDebounce < 0 {
		return ClientConfig{}, fmt.Errorf("SEARCH_DEBOUNCE must not be negative")
	}
	return cfg, nil
}
