package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server    ServerConfig    `envconfig:"SERVER"`
	Data      DataConfig      `envconfig:"DATA"`
	Forecast  ForecastConfig  `envconfig:"FORECAST"`
	Logger    LoggerConfig    `envconfig:"LOG"`
	Security  SecurityConfig  `envconfig:"SECURITY"`
	Telemetry TelemetryConfig `envconfig:"TELEMETRY"`
}

type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"localhost"`
	Port            int           `envconfig:"PORT" default:"8084"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// DataConfig locates the five source tables. Each locator is a file path
// or an http(s) URL.
type DataConfig struct {
	Products    string        `envconfig:"PRODUCTS" default:"data/products_master.csv"`
	Stores      string        `envconfig:"STORES" default:"data/stores_master.csv"`
	Calendar    string        `envconfig:"CALENDAR" default:"data/calendar_master.csv"`
	Inventory   string        `envconfig:"INVENTORY" default:"data/inventory_transactions.csv"`
	Sales       string        `envconfig:"SALES" default:"data/sales_transactions.csv"`
	DateLayout  string        `envconfig:"DATE_LAYOUT" default:"2006-01-02"`
	LoadTimeout time.Duration `envconfig:"LOAD_TIMEOUT" default:"30s"`
}

type ForecastConfig struct {
	MinObservations int `envconfig:"MIN_OBSERVATIONS" default:"10"`
	Horizon         int `envconfig:"HORIZON" default:"14"`
	MaxHorizon      int `envconfig:"MAX_HORIZON" default:"90"`
}

type LoggerConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RateLimitRPS    int      `envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst  int      `envconfig:"RATE_LIMIT_BURST" default:"10"`
	AllowedOrigins  []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8084"`
	TrustedProxies  []string `envconfig:"TRUSTED_PROXIES" default:"127.0.0.1"`
}

type TelemetryConfig struct {
	Tracing     bool   `envconfig:"TRACING" default:"false"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"retail-dashboard"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	for name, locator := range map[string]string{
		"products":  c.Data.Products,
		"stores":    c.Data.Stores,
		"calendar":  c.Data.Calendar,
		"inventory": c.Data.Inventory,
		"sales":     c.Data.Sales,
	} {
		if strings.TrimSpace(locator) == "" {
			return fmt.Errorf("%s source cannot be empty", name)
		}
	}

	if c.Data.LoadTimeout <= 0 {
		return fmt.Errorf("data load timeout must be positive")
	}

	if strings.TrimSpace(c.Data.DateLayout) == "" {
		return fmt.Errorf("data date layout cannot be empty")
	}

	if c.Forecast.MinObservations < 2 {
		return fmt.Errorf("forecast minimum observations must be at least 2, got %d", c.Forecast.MinObservations)
	}

	if c.Forecast.Horizon < 1 || c.Forecast.Horizon > c.Forecast.MaxHorizon {
		return fmt.Errorf("forecast horizon must be between 1 and %d, got %d", c.Forecast.MaxHorizon, c.Forecast.Horizon)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	return nil
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
