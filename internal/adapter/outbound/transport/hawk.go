package transport

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
)

// Credentials are the per-organization signing material used to compute
// the Hawk-style MAC over each outgoing request. APIKey is the raw
// shared secret; it is never logged or persisted in cleartext by this
// package (see internal/config for how it is hashed at rest).
type Credentials struct {
	UserID    string
	APIKey    string
	Extension string // fixed per-organization extension mixed into the MAC
}

// signRequest computes the canonicalized-request MAC described by the
// platform's Hawk-compatible scheme: a base64(HMAC-SHA256) over
// newline-joined ("hawk.1.header", timestamp, nonce, method, url,
// content-type, body-hash, extension, and a trailing empty line),
// returning the literal header value.
//
// This mirrors the shape of Hawk's "normalized request string" closely
// enough to interoperate with a Hawk-speaking server, without pulling
// in a full Hawk client implementation: the primitive it needs is
// HMAC-SHA256 over a canonical string, which crypto/hmac provides
// directly.
func signRequest(creds Credentials, method, url string, body []byte, contentType string, timestamp int64, nonce string) string {
	bodyHash := sha256.Sum256(body)
	bodyHashB64 := base64.StdEncoding.EncodeToString(bodyHash[:])

	normalized := strings.Join([]string{
		"hawk.1.header",
		fmt.Sprintf("%d", timestamp),
		nonce,
		method,
		url,
		contentType,
		bodyHashB64,
		creds.Extension,
		"",
	}, "\n")

	mac := hmac.New(sha256.New, []byte(creds.APIKey))
	_, _ = mac.Write([]byte(normalized))
	macB64 := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf(
		`Hawk id="%s", ts="%d", nonce="%s", mac="%s", hash="%s", ext="%s"`,
		creds.UserID, timestamp, nonce, macB64, bodyHashB64, creds.Extension,
	)
}
