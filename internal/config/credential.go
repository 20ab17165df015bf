package config

import (
	"fmt"

	"github.com/alexedwards/argon2id"
)

// credentialHashParams are OWASP-minimum Argon2id parameters for
// hashing secrets at rest.
var credentialHashParams = &argon2id.Params{
	Memory:      47 * 1024, // 47 MiB (OWASP minimum: 46 MiB)
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashAPIKeyAtRest returns an Argon2id PHC-format hash of a raw API
// key, for any path that persists credentials back to a config file
// (e.g. a `rulectl configure` flow writing a local cache of the
// validated key) — the config loader itself still accepts and uses the
// raw APIKey field in memory for signing; this is only for not writing
// the plaintext secret to disk a second time.
func HashAPIKeyAtRest(rawKey string) (string, error) {
	hash, err := argon2id.CreateHash(rawKey, credentialHashParams)
	if err != nil {
		return "", fmt.Errorf("config: hash api key: %w", err)
	}
	return hash, nil
}

// VerifyAPIKeyAtRest checks rawKey against a previously stored
// Argon2id hash.
func VerifyAPIKeyAtRest(rawKey, storedHash string) (bool, error) {
	match, err := argon2id.ComparePasswordAndHash(rawKey, storedHash)
	if err != nil {
		return false, fmt.Errorf("config: verify api key: %w", err)
	}
	return match, nil
}
