package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	PGURL    string
	AVKey    string
	Port     string
	LogLevel string

	// Optional shared quote cache; the in-memory cache is used when empty
	RedisURL string
	QuoteTTL time.Duration
	AVRPS    float64

	// Default brokerage account; confirmations may supply their own credentials
	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaBaseURL   string

	// Email notifications are disabled when SESFrom is empty
	SESRegion string
	SESFrom   string

	MaxResolveDepth       int
	BreakoutThreshold     float64
	BreakoutPolicy        string
	RunConfirmTTL         time.Duration
	MaxDefinitionsPerUser int
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first; variables already set in the shell win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	pgURL := os.Getenv("PG_URL")
	if pgURL == "" {
		return nil, fmt.Errorf("PG_URL environment variable is required")
	}

	avKey := os.Getenv("AV_KEY")
	if avKey == "" {
		return nil, fmt.Errorf("AV_KEY environment variable is required")
	}

	cfg := &Config{
		PGURL:           pgURL,
		AVKey:           avKey,
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RedisURL:        os.Getenv("REDIS_URL"),
		AlpacaAPIKey:    os.Getenv("ALPACA_API_KEY"),
		AlpacaAPISecret: os.Getenv("ALPACA_API_SECRET"),
		AlpacaBaseURL:   getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		SESRegion:       getEnv("SES_REGION", "us-east-1"),
		SESFrom:         os.Getenv("SES_FROM"),
		BreakoutPolicy:  getEnv("BREAKOUT_POLICY", "equal"),
	}

	var err error
	if cfg.QuoteTTL, err = getDuration("QUOTE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RunConfirmTTL, err = getDuration("RUN_CONFIRM_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.AVRPS, err = getFloat("AV_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.BreakoutThreshold, err = getFloat("BREAKOUT_THRESHOLD", 2.0); err != nil {
		return nil, err
	}
	if cfg.MaxResolveDepth, err = getInt("MAX_RESOLVE_DEPTH", 32); err != nil {
		return nil, err
	}
	if cfg.MaxDefinitionsPerUser, err = getInt("MAX_DEFINITIONS_PER_USER", 200); err != nil {
		return nil, err
	}

	if cfg.BreakoutPolicy != "equal" && cfg.BreakoutPolicy != "proportional" {
		return nil, fmt.Errorf("BREAKOUT_POLICY must be 'equal' or 'proportional', got %q", cfg.BreakoutPolicy)
	}
	if (cfg.AlpacaAPIKey == "") != (cfg.AlpacaAPISecret == "") {
		return nil, fmt.Errorf("ALPACA_API_KEY and ALPACA_API_SECRET must be set together")
	}

	return cfg, nil
}

// BrokerConfigured reports whether a default brokerage account is available
func (c *Config) BrokerConfigured() bool {
	return c.AlpacaAPIKey != "" && c.AlpacaAPISecret != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return i, nil
}
