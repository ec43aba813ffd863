// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port               string
	Env                string // "development", "staging", "production"
	LogLevel           string
	RateLimitPerMinute int // per-client API rate limit; 0 disables

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Detection settings
	RulesPath            string  // YAML rule set, optional
	EscalateThreshold    float64 // final score above which a case is always opened
	ComplianceCeiling    float64 // amount at which the built-in compliance check flags
	CollaboratorTimeout  time.Duration
	BaselineHistoryLimit int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; tracing disabled when empty
}

const (
	DefaultPort              = "8080"
	DefaultEnv               = "development"
	DefaultLogLevel          = "info"
	DefaultEscalateThreshold = 0.75
	DefaultComplianceCeiling = 100000
	DefaultCollaboratorMS    = 2000
	DefaultHistoryLimit      = 200
	DefaultRateLimit         = 120
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		RateLimitPerMinute:   int(getEnvInt64("RATE_LIMIT_PER_MINUTE", DefaultRateLimit)),
		DatabaseURL:          os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RulesPath:            os.Getenv("RULES_PATH"),
		EscalateThreshold:    getEnvFloat("ESCALATE_THRESHOLD", DefaultEscalateThreshold),
		ComplianceCeiling:    getEnvFloat("COMPLIANCE_AMOUNT_CEILING", DefaultComplianceCeiling),
		CollaboratorTimeout:  time.Duration(getEnvInt64("COLLABORATOR_TIMEOUT_MS", DefaultCollaboratorMS)) * time.Millisecond,
		BaselineHistoryLimit: int(getEnvInt64("BASELINE_HISTORY_LIMIT", DefaultHistoryLimit)),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is coherent
func (c *Config) Validate() error {
	if c.EscalateThreshold < 0 || c.EscalateThreshold > 1 {
		return fmt.Errorf("ESCALATE_THRESHOLD must be in [0,1], got %v", c.EscalateThreshold)
	}
	if c.ComplianceCeiling <= 0 {
		return fmt.Errorf("COMPLIANCE_AMOUNT_CEILING must be positive, got %v", c.ComplianceCeiling)
	}
	if c.CollaboratorTimeout <= 0 {
		return fmt.Errorf("COLLABORATOR_TIMEOUT_MS must be positive")
	}
	if c.BaselineHistoryLimit <= 0 {
		return fmt.Errorf("BASELINE_HISTORY_LIMIT must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be non-negative, got %d", c.RateLimitPerMinute)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
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
