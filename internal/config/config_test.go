package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"podium/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatalf("expected config file to be absent")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Poll.IntervalSeconds != 3 {
		t.Fatalf("poll interval = %d, want 3", cfg.Poll.IntervalSeconds)
	}
	if cfg.Poll.MaxAttempts != 20 {
		t.Fatalf("poll max attempts = %d, want 20", cfg.Poll.MaxAttempts)
	}
	if len(cfg.Feedback.Models) == 0 {
		t.Fatal("expected default feedback model candidates")
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[poll]
interval_seconds = 5
max_attempts = 7

[feedback]
models = ["demo/model-a", "demo/model-b"]

[logging]
format = "json"
level = "debug"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if cfg.Poll.IntervalSeconds != 5 || cfg.Poll.MaxAttempts != 7 {
		t.Fatalf("poll = %+v, want 5/7", cfg.Poll)
	}
	if len(cfg.Feedback.Models) != 2 || cfg.Feedback.Models[0] != "demo/model-a" {
		t.Fatalf("feedback models = %v", cfg.Feedback.Models)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("logging format = %q", cfg.Logging.Format)
	}
}

func TestLoadRejectsInvalidLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
[logging]
format = "xml"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected validation error for unsupported log format")
	}
}

func TestEnvironmentOverridesSecrets(t *testing.T) {
	t.Setenv("PODIUM_FEEDBACK_API_KEY", "env-key")
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feedback.APIKey != "env-key" {
		t.Fatalf("feedback api key = %q, want env override", cfg.Feedback.APIKey)
	}
}
