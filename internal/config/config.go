// Package config provides the configuration schema for rulectl: where
// the state directory and ledger file live, whether mutation verbs
// push eagerly, logging verbosity, and the credentials used to sign
// requests to the remote platform.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultStateDirName  = ".threatstack"
	defaultStateFileName = ".threatstack.state.json"
	defaultLogLevel      = "info"
	defaultBaseURL       = "https://api.threatstack.com"
	defaultMaxAttempts   = 5
	defaultBackoff       = "500ms"
)

// Config is the top-level configuration for rulectl.
type Config struct {
	// StateDir is where the ledger file and every organization's mirror
	// directory live. Accepts an absolute path or one starting with
	// "~/"; SetDefaults expands the latter against the user's home
	// directory. Defaults to "~/.threatstack/".
	StateDir string `yaml:"state_dir" mapstructure:"state_dir"`

	// StateFile is the ledger's filename within StateDir. Defaults to
	// ".threatstack.state.json".
	StateFile string `yaml:"state_file" mapstructure:"state_file"`

	// LazyEval controls whether mutation verbs push immediately
	// (false) or only edit the mirror and ledger, leaving push
	// explicit (true, the default — "lazy mode").
	LazyEval bool `yaml:"lazy_eval" mapstructure:"lazy_eval"`

	// LogLevel sets the minimum level for structured log output.
	// Valid values: "debug", "info", "warn" (or "warning"), "error". Defaults to
	// "info".
	LogLevel string `yaml:"loglevel" mapstructure:"loglevel" validate:"omitempty,oneof=debug info warn warning error"`

	// BaseURL is the remote platform's API base (e.g.
	// "https://api.threatstack.com"). Defaults to the platform's
	// production endpoint.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Credentials authenticate every request Transport sends.
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`

	// Retry configures Transport's retry policy.
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`

	// DevMode enables verbose logging and stdout span export.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// CredentialsConfig holds the platform identity used to sign requests.
// Accepted from the config file or from the environment (USER_ID,
// API_KEY, or RULECTL_ prefixed equivalents — see loader.go).
type CredentialsConfig struct {
	// UserID is the platform account id mixed into the Hawk-style
	// signature as the "id" field.
	UserID string `yaml:"user_id" mapstructure:"user_id" validate:"required_with=APIKey"`

	// APIKey is the shared secret used as the HMAC key. Never logged;
	// see credential.go for how it is hashed before being written back
	// to a persisted config file.
	APIKey string `yaml:"api_key,omitempty" mapstructure:"api_key" validate:"required_with=UserID"`

	// APIKeyHash is the Argon2id hash WriteFile records in place of the
	// raw key. Populated only in persisted config files, never set by
	// hand.
	APIKeyHash string `yaml:"api_key_hash,omitempty" mapstructure:"api_key_hash"`
}

// RetryConfig configures Transport's retry policy.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per request,
	// including the first. 0 means retry forever. Defaults to 5.
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts" validate:"omitempty,min=0"`

	// Backoff is the constant delay between retries of network/parse
	// failures, as a Go duration string (e.g. "500ms"). Defaults to
	// "500ms".
	Backoff string `yaml:"backoff" mapstructure:"backoff" validate:"omitempty"`
}

// SetDefaults applies the documented defaults to any field left unset
// by the config file or environment.
func (c *Config) SetDefaults() {
	if c.StateDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.StateDir = filepath.Join(home, defaultStateDirName)
		} else {
			c.StateDir = defaultStateDirName
		}
	} else {
		c.StateDir = expandHome(c.StateDir)
	}

	if c.StateFile == "" {
		c.StateFile = defaultStateFileName
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Retry.Backoff == "" {
		c.Retry.Backoff = defaultBackoff
	}
	// LazyEval's zero value (false) is a legitimate explicit choice
	// ("eager mode"), while the documented default is true; likewise
	// Retry.MaxAttempts' zero value means "retry forever" and must not
	// be coerced to the default of 5. Both are distinguished from an
	// unset key by the loader (see loader.go's use of viper.IsSet), not
	// here.
}

// expandHome rewrites a leading "~/" to the user's home directory.
// Paths that are already absolute, or that don't start with "~/", are
// returned unchanged.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") && path != "~" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/"))
}

// StatePath returns the full path to the ledger file.
func (c *Config) StatePath() string {
	return filepath.Join(c.StateDir, c.StateFile)
}

// HasCredentials reports whether both UserID and APIKey are set.
func (c *Config) HasCredentials() bool {
	return c.Credentials.UserID != "" && c.Credentials.APIKey != ""
}
