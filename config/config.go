package config

import (
	"fmt"
	"log/slog"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	DatabaseURL         string `env:"DATABASE_URL,required" validate:"required"`
	WorkerCount         int    `env:"WORKER_COUNT" envDefault:"3" validate:"min=1,max=100"`
	DispatchIntervalSec int    `env:"DISPATCH_INTERVAL_SEC" envDefault:"60" validate:"min=1,max=3600"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"required,oneof=debug info warn error"`

	// ClerkJWKSURL is the JWKS endpoint for RS256 token verification (Clerk).
	// When set, it takes precedence over JWTSecret.
	ClerkJWKSURL string `env:"CLERK_JWKS_URL"`

	// JWTSecret is the HS256 fallback used when ClerkJWKSURL is unset (local dev).
	JWTSecret    string `env:"JWT_SECRET"`
	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`

	// MetadataManagerURL is the base URL of the external Metadata Task
	// Manager the Metadata Refresh executor submits to.
	MetadataManagerURL string `env:"METADATA_MANAGER_URL" envDefault:"http://localhost:8090"`

	// MaxPreviewRows is loaded and range-checked here; no code in this
	// service reads it, so validation results carry no row preview limit.
	MaxPreviewRows int `env:"MAX_PREVIEW_ROWS" envDefault:"50" validate:"min=1,max=1000"`

	// EnableAutomationScheduler is the explicit opt-in the "local"
	// environment requires before the orchestrator's tick loop runs at all
	// — see lifecycle.ShouldEnableAutomation.
	EnableAutomationScheduler bool `env:"ENABLE_AUTOMATION_SCHEDULER" envDefault:"false"`

	// DisableAutomation is an override that always wins regardless of
	// environment — see lifecycle.ShouldEnableAutomation.
	DisableAutomation bool `env:"DISABLE_AUTOMATION" envDefault:"false"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SlogLevel converts the LOG_LEVEL string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
