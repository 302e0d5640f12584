// Package config provides configuration management for the Bastion demo
// services: JSON file loading, environment variable overrides and validation
// with helpful error messages.
//
// Configuration sources, in order of precedence:
//  1. Environment variables (BASTION_*)
//  2. Configuration file (JSON)
//  3. Default values
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ServerConfig holds the HTTP listener settings of a demo service.
type ServerConfig struct {
	ListenAddress string `json:"listen_address"`
}

// BackendConfig points the frontend at the upstream service.
type BackendConfig struct {
	BaseURL string `json:"base_url"`
}

// PolicyConfig holds the resilience policy the frontend composes around
// every backend call. Durations are expressed in milliseconds in the file
// and environment, matching the library's admission and retry granularity.
type PolicyConfig struct {
	RetryAttempts    int    `json:"retry_attempts"`
	RetryDelayMillis int    `json:"retry_delay_millis"`
	TimeLimitMillis  int    `json:"time_limit_millis"`
	PoolID           string `json:"pool_id"`
	MaxConcurrent    int    `json:"max_concurrent"`
	MaxQueue         int    `json:"max_queue"`
	MaxWaitMillis    int    `json:"max_wait_millis"`
	FallbackMessage  string `json:"fallback_message"`
}

// RetryDelay returns the inter-attempt delay as a duration.
func (p *PolicyConfig) RetryDelay() time.Duration {
	return time.Duration(p.RetryDelayMillis) * time.Millisecond
}

// TimeLimit returns the per-attempt deadline as a duration.
func (p *PolicyConfig) TimeLimit() time.Duration {
	return time.Duration(p.TimeLimitMillis) * time.Millisecond
}

// MaxWait returns the admission wait as a duration.
func (p *PolicyConfig) MaxWait() time.Duration {
	return time.Duration(p.MaxWaitMillis) * time.Millisecond
}

// LoggingConfig holds string-based logger settings, parsed by the logging
// package.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
	File   string `json:"file,omitempty"`
}

// Config is the complete configuration of a demo service.
type Config struct {
	Server  ServerConfig  `json:"server"`
	Backend BackendConfig `json:"backend"`
	Policy  PolicyConfig  `json:"policy"`
	Logging LoggingConfig `json:"logging"`
}

// DefaultConfig returns a configuration suitable for running both demo
// services on one machine with no file at all.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddress: ":8080",
		},
		Backend: BackendConfig{
			BaseURL: "http://127.0.0.1:8081",
		},
		Policy: PolicyConfig{
			RetryAttempts:    3,
			RetryDelayMillis: 100,
			TimeLimitMillis:  2000,
			PoolID:           "backend-calls",
			MaxConcurrent:    8,
			MaxQueue:         32,
			MaxWaitMillis:    250,
			FallbackMessage:  "service temporarily degraded",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "console",
		},
	}
}

// LoadConfig builds a configuration from defaults, then the given file (if
// the path is non-empty), then environment overrides, and validates the
// result.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BASTION_LISTEN_ADDRESS"); v != "" {
		c.Server.ListenAddress = v
	}
	if v := os.Getenv("BASTION_BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("BASTION_POOL_ID"); v != "" {
		c.Policy.PoolID = v
	}
	if v := os.Getenv("BASTION_FALLBACK_MESSAGE"); v != "" {
		c.Policy.FallbackMessage = v
	}
	if v := os.Getenv("BASTION_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("BASTION_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}

	envInt := func(name string, target *int) {
		if v := os.Getenv(name); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				*target = parsed
			}
		}
	}
	envInt("BASTION_RETRY_ATTEMPTS", &c.Policy.RetryAttempts)
	envInt("BASTION_RETRY_DELAY_MILLIS", &c.Policy.RetryDelayMillis)
	envInt("BASTION_TIME_LIMIT_MILLIS", &c.Policy.TimeLimitMillis)
	envInt("BASTION_MAX_CONCURRENT", &c.Policy.MaxConcurrent)
	envInt("BASTION_MAX_QUEUE", &c.Policy.MaxQueue)
	envInt("BASTION_MAX_WAIT_MILLIS", &c.Policy.MaxWaitMillis)
}

// Validate checks the configuration and returns a descriptive error for the
// first problem found.
func (c *Config) Validate() error {
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("server.listen_address must not be empty")
	}
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	if c.Policy.PoolID == "" {
		return fmt.Errorf("policy.pool_id must not be empty")
	}
	if c.Policy.RetryAttempts < 1 {
		return fmt.Errorf("policy.retry_attempts must be at least 1, got %d", c.Policy.RetryAttempts)
	}
	if c.Policy.RetryDelayMillis < 0 {
		return fmt.Errorf("policy.retry_delay_millis must not be negative, got %d", c.Policy.RetryDelayMillis)
	}
	if c.Policy.TimeLimitMillis < 0 {
		return fmt.Errorf("policy.time_limit_millis must not be negative, got %d", c.Policy.TimeLimitMillis)
	}
	if c.Policy.MaxConcurrent < 1 {
		return fmt.Errorf("policy.max_concurrent must be at least 1, got %d", c.Policy.MaxConcurrent)
	}
	if c.Policy.MaxQueue < 1 {
		return fmt.Errorf("policy.max_queue must be at least 1, got %d", c.Policy.MaxQueue)
	}
	if c.Policy.MaxWaitMillis < 0 {
		return fmt.Errorf("policy.max_wait_millis must not be negative, got %d", c.Policy.MaxWaitMillis)
	}
	return nil
}

// SaveToFile writes the configuration as indented JSON, creating parent
// directories as needed.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}
	return nil
}
