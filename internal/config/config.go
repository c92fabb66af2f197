// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Protection settings
	SweepKeepBack string // amount left in the owner's holdings by the cascade sweep
	VaultReserve  string // minimum balance the vault retains through a claim

	// Guardian settings
	GuardianWatch         []string // addresses watched by the embedded guardian
	GuardianDropThreshold float64  // drop percent treated as full-magnitude risk
	GuardianRapidWindow   time.Duration
	GuardianRapidLimit    int
	GuardianPollInterval  time.Duration
	GuardianAutoTrigger   bool
	GuardianAggressor     string // default aggressor address for autonomous triggers
	GuardianSecret        string // duress secret for autonomous triggers (optional)

	// Chain settings (standalone guardian daemon)
	RPCURL        string
	ChainDecimals int // decimals of the watched chain's native coin

	// Notifications
	WebhookSecret string

	// Tracing
	OTLPEndpoint string
}

// Defaults.
const (
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultSweepKeepBack = "0.01"
	DefaultVaultReserve  = "0.001"
	DefaultDropThreshold = 50.0
	DefaultRapidLimit    = 3
	DefaultChainDecimals = 18
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", DefaultPort),
		Env:                   getEnv("ENV", DefaultEnv),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		SweepKeepBack:         getEnv("SWEEP_KEEPBACK", DefaultSweepKeepBack),
		VaultReserve:          getEnv("VAULT_RESERVE", DefaultVaultReserve),
		GuardianWatch:         getEnvList("GUARDIAN_WATCH_ADDRESSES"),
		GuardianDropThreshold: getEnvFloat("GUARDIAN_DROP_THRESHOLD", DefaultDropThreshold),
		GuardianRapidWindow:   getEnvDuration("GUARDIAN_RAPID_WINDOW", 5*time.Minute),
		GuardianRapidLimit:    int(getEnvInt64("GUARDIAN_RAPID_LIMIT", DefaultRapidLimit)),
		GuardianPollInterval:  getEnvDuration("GUARDIAN_POLL_INTERVAL", 10*time.Second),
		GuardianAutoTrigger:   getEnvBool("GUARDIAN_AUTO_TRIGGER", false),
		GuardianAggressor:     os.Getenv("GUARDIAN_AGGRESSOR_ADDRESS"),
		GuardianSecret:        os.Getenv("GUARDIAN_TRIGGER_SECRET"),
		RPCURL:                os.Getenv("RPC_URL"),
		ChainDecimals:         int(getEnvInt64("CHAIN_DECIMALS", DefaultChainDecimals)),
		WebhookSecret:         os.Getenv("WEBHOOK_SECRET"),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.GuardianDropThreshold <= 0 || c.GuardianDropThreshold > 100 {
		return fmt.Errorf("GUARDIAN_DROP_THRESHOLD must be in (0, 100], got %v", c.GuardianDropThreshold)
	}
	if c.GuardianRapidLimit < 1 {
		return fmt.Errorf("GUARDIAN_RAPID_LIMIT must be >= 1, got %d", c.GuardianRapidLimit)
	}
	if c.GuardianAutoTrigger {
		if c.GuardianAggressor == "" {
			return fmt.Errorf("GUARDIAN_AGGRESSOR_ADDRESS is required when GUARDIAN_AUTO_TRIGGER is set")
		}
		if c.GuardianSecret == "" {
			return fmt.Errorf("GUARDIAN_TRIGGER_SECRET is required when GUARDIAN_AUTO_TRIGGER is set")
		}
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
