// Package config provides configuration loading for rulectl.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment variables.
// If configFile is empty, it searches for rulectl.yaml/.yml in standard locations.
// The search requires an explicit YAML extension to avoid matching the binary itself,
// which Viper's built-in SetConfigName would match (same base name, no extension).
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location.
		// Set name/type without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("rulectl")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: RULECTL_STATE_DIR, RULECTL_LOGLEVEL, ...
	viper.SetEnvPrefix("RULECTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
	bindLegacyCredentialEnvKeys()
}

// findConfigFile searches standard locations for a rulectl config file
// with an explicit YAML extension (.yaml or .yml). This prevents Viper
// from matching the binary "rulectl" (no extension) in the current
// directory.
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".rulectl"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "rulectl"))
		}
	} else {
		paths = append(paths, "/etc/rulectl")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for rulectl.yaml
// or .yml. Returns the full path of the first match, or empty string if
// none found.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "rulectl"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds every rulectl config key for RULECTL_-prefixed
// environment variable support, e.g. RULECTL_STATE_DIR overrides
// state_dir.
func bindNestedEnvKeys() {
	_ = viper.BindEnv("state_dir")
	_ = viper.BindEnv("state_file")
	_ = viper.BindEnv("lazy_eval")
	_ = viper.BindEnv("loglevel")
	_ = viper.BindEnv("base_url")
	_ = viper.BindEnv("dev_mode")
	_ = viper.BindEnv("credentials.user_id")
	_ = viper.BindEnv("credentials.api_key")
	_ = viper.BindEnv("retry.max_attempts")
	_ = viper.BindEnv("retry.backoff")
}

// bindLegacyCredentialEnvKeys additionally accepts the bare USER_ID and
// API_KEY environment variables the platform's other tooling already
// uses, alongside the RULECTL_-prefixed form.
func bindLegacyCredentialEnvKeys() {
	_ = viper.BindEnv("credentials.user_id", "USER_ID")
	_ = viper.BindEnv("credentials.api_key", "API_KEY")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, and returns the validated Config.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigRaw reads the configuration file and unmarshals it, but does
// NOT apply defaults or validate. Use this when CLI flags may override
// fields (e.g. --state) before validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if !viper.IsSet("lazy_eval") {
		cfg.LazyEval = true
	}
	// An explicit max_attempts: 0 means retry forever; only seed the
	// default when the key is truly absent.
	if !viper.IsSet("retry.max_attempts") {
		cfg.Retry.MaxAttempts = defaultMaxAttempts
	}

	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded.
// Returns an empty string if no config file was found (env vars only mode).
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
