// Package common provides shared utilities for the wealth advisor
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for the service
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Rules       RulesConfig   `toml:"rules"`
	Auth        AuthConfig    `toml:"auth"`
	Advisor     AdvisorConfig `toml:"advisor"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the SQLite database location.
type StorageConfig struct {
	Path string `toml:"path"`
}

// RulesConfig points at the portfolio rules file. The file is required:
// startup aborts if it is missing or incomplete.
type RulesConfig struct {
	Path string `toml:"path"`
}

// AuthConfig holds OTP and JWT authentication configuration.
type AuthConfig struct {
	JWTSecret   string `toml:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry"` // duration string, default "24h"
	OTPExpiry   string `toml:"otp_expiry"`   // duration string, default "10m"
	DemoMode    bool   `toml:"demo_mode"`
	DemoPhone   string `toml:"demo_phone"`
	DemoOTP     string `toml:"demo_otp"`
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// GetOTPExpiry parses and returns the OTP expiry duration.
func (c *AuthConfig) GetOTPExpiry() time.Duration {
	d, err := time.ParseDuration(c.OTPExpiry)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// AdvisorConfig holds the optional Gemini-backed advisor configuration.
type AdvisorConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Path: "data/wealth.db",
		},
		Rules: RulesConfig{
			Path: "config/portfolio_rules.toml",
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
			OTPExpiry:   "10m",
			DemoMode:    true,
			DemoPhone:   "+919999999999",
			DemoOTP:     "123456",
		},
		Advisor: AdvisorConfig{
			Model: "gemini-2.0-flash",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("WEALTH_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("WEALTH_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("WEALTH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("WEALTH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("WEALTH_DB_PATH"); path != "" {
		config.Storage.Path = path
	}

	if path := os.Getenv("WEALTH_RULES_PATH"); path != "" {
		config.Rules.Path = path
	}

	if v := os.Getenv("WEALTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("WEALTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
	if v := os.Getenv("WEALTH_DEMO_MODE"); v != "" {
		config.Auth.DemoMode = v == "true" || v == "1"
	}

	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Advisor.APIKey = v
	}
	if v := os.Getenv("WEALTH_ADVISOR_MODEL"); v != "" {
		config.Advisor.Model = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
