package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}
	wantDir := filepath.Join(home, ".threatstack")
	if cfg.StateDir != wantDir {
		t.Errorf("StateDir = %q, want %q", cfg.StateDir, wantDir)
	}
	if cfg.StateFile != ".threatstack.state.json" {
		t.Errorf("StateFile = %q, want %q", cfg.StateFile, ".threatstack.state.json")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.BaseURL != defaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, defaultBaseURL)
	}
	// MaxAttempts is deliberately untouched: 0 means retry forever, so
	// the default of 5 is seeded by the loader only when the key is
	// absent, never here.
	if cfg.Retry.MaxAttempts != 0 {
		t.Errorf("Retry.MaxAttempts = %d, want 0 (retry-forever preserved)", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Backoff != "500ms" {
		t.Errorf("Retry.Backoff = %q, want %q", cfg.Retry.Backoff, "500ms")
	}
}

func TestConfig_SetDefaults_PreservesExplicitValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		StateDir:  "/srv/rulectl-state",
		StateFile: "custom.json",
		BaseURL:   "https://staging.example.com",
	}
	cfg.SetDefaults()

	if cfg.StateDir != "/srv/rulectl-state" {
		t.Errorf("StateDir = %q, want unchanged", cfg.StateDir)
	}
	if cfg.StateFile != "custom.json" {
		t.Errorf("StateFile = %q, want unchanged", cfg.StateFile)
	}
	if cfg.BaseURL != "https://staging.example.com" {
		t.Errorf("BaseURL = %q, want unchanged", cfg.BaseURL)
	}
}

func TestConfig_SetDefaults_ExpandsHomeRelativeStateDir(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("UserHomeDir: %v", err)
	}

	cfg := Config{StateDir: "~/custom-state"}
	cfg.SetDefaults()

	want := filepath.Join(home, "custom-state")
	if cfg.StateDir != want {
		t.Errorf("StateDir = %q, want %q", cfg.StateDir, want)
	}
}

func TestConfig_StatePath(t *testing.T) {
	t.Parallel()

	cfg := Config{StateDir: "/tmp/rulectl", StateFile: "ledger.json"}
	want := filepath.Join("/tmp/rulectl", "ledger.json")
	if got := cfg.StatePath(); got != want {
		t.Errorf("StatePath() = %q, want %q", got, want)
	}
}

func TestConfig_HasCredentials(t *testing.T) {
	t.Parallel()

	var cfg Config
	if cfg.HasCredentials() {
		t.Error("HasCredentials() on zero-value Config should be false")
	}

	cfg.Credentials = CredentialsConfig{UserID: "u1", APIKey: "k1"}
	if !cfg.HasCredentials() {
		t.Error("HasCredentials() should be true once both fields are set")
	}
}
