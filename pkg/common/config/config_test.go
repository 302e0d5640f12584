package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration must validate: %v", err)
	}
}

func TestLoadConfigWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Policy.PoolID == "" {
		t.Error("defaults should provide a pool id")
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	content := `{
		"server": {"listen_address": ":9999"},
		"policy": {"retry_attempts": 5, "pool_id": "custom-pool"}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddress != ":9999" {
		t.Errorf("listen address not loaded, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Policy.RetryAttempts != 5 {
		t.Errorf("retry attempts not loaded, got %d", cfg.Policy.RetryAttempts)
	}
	if cfg.Policy.PoolID != "custom-pool" {
		t.Errorf("pool id not loaded, got %q", cfg.Policy.PoolID)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Backend.BaseURL == "" {
		t.Error("backend URL should fall back to the default")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/path/config.json"); err == nil {
		t.Error("missing file should be an error when a path is given")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("BASTION_LISTEN_ADDRESS", ":7777")
	t.Setenv("BASTION_RETRY_ATTEMPTS", "9")
	t.Setenv("BASTION_MAX_CONCURRENT", "3")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddress != ":7777" {
		t.Errorf("env override for listen address not applied, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Policy.RetryAttempts != 9 {
		t.Errorf("env override for retry attempts not applied, got %d", cfg.Policy.RetryAttempts)
	}
	if cfg.Policy.MaxConcurrent != 3 {
		t.Errorf("env override for max concurrent not applied, got %d", cfg.Policy.MaxConcurrent)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.Server.ListenAddress = "" }},
		{"empty backend url", func(c *Config) { c.Backend.BaseURL = "" }},
		{"empty pool id", func(c *Config) { c.Policy.PoolID = "" }},
		{"zero retry attempts", func(c *Config) { c.Policy.RetryAttempts = 0 }},
		{"negative retry delay", func(c *Config) { c.Policy.RetryDelayMillis = -1 }},
		{"negative time limit", func(c *Config) { c.Policy.TimeLimitMillis = -1 }},
		{"zero max concurrent", func(c *Config) { c.Policy.MaxConcurrent = 0 }},
		{"zero max queue", func(c *Config) { c.Policy.MaxQueue = 0 }},
		{"negative max wait", func(c *Config) { c.Policy.MaxWaitMillis = -1 }},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestDurationHelpers(t *testing.T) {
	policy := PolicyConfig{
		RetryDelayMillis: 100,
		TimeLimitMillis:  2000,
		MaxWaitMillis:    250,
	}

	if policy.RetryDelay() != 100*time.Millisecond {
		t.Errorf("RetryDelay() = %v", policy.RetryDelay())
	}
	if policy.TimeLimit() != 2*time.Second {
		t.Errorf("TimeLimit() = %v", policy.TimeLimit())
	}
	if policy.MaxWait() != 250*time.Millisecond {
		t.Errorf("MaxWait() = %v", policy.MaxWait())
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Policy.PoolID = "saved-pool"
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.Policy.PoolID != "saved-pool" {
		t.Errorf("round trip lost pool id, got %q", loaded.Policy.PoolID)
	}
}
