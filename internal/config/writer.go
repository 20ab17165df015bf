package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WriteFile persists the configuration to path as YAML. The raw API
// key is never written: the credentials block carries only the user id
// and an Argon2id hash of the key, so a later run can verify that the
// key supplied via environment matches the one that was configured
// (see VerifyStoredAPIKey) without the plaintext secret ever landing
// on disk.
func (c *Config) WriteFile(path string) error {
	out := *c
	if c.Credentials.APIKey != "" {
		hash, err := HashAPIKeyAtRest(c.Credentials.APIKey)
		if err != nil {
			return err
		}
		out.Credentials.APIKey = ""
		out.Credentials.APIKeyHash = hash
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// VerifyStoredAPIKey checks a raw API key (typically from the
// environment) against the hash a previous WriteFile recorded. Returns
// true when no hash is stored, since there is nothing to contradict.
func (c *Config) VerifyStoredAPIKey(rawKey string) (bool, error) {
	if c.Credentials.APIKeyHash == "" {
		return true, nil
	}
	return VerifyAPIKeyAtRest(rawKey, c.Credentials.APIKeyHash)
}
