// Package transport implements the signed, retrying HTTP client that
// talks to the remote rule-management platform's REST API.
package transport

import (
	"errors"
	"fmt"
)

// ErrServerUnreachable is returned when a request never completes
// (connection failure, all retries exhausted).
var ErrServerUnreachable = errors.New("transport: server unreachable")

// APIError reports a non-2xx, non-retryable response from the remote
// platform.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error returns a human-readable description of the failed request.
func (e *APIError) Error() string {
	return fmt.Sprintf("transport: %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Is reports whether this error matches target.
func (e *APIError) Is(target error) bool {
	return target == ErrServerUnreachable && e.StatusCode == 0
}

// rateLimitError is raised internally by sendOnce when the remote
// platform responds 429 with a x-rate-limit-reset header. It is always
// handled inside Client.do and never escapes the package.
type rateLimitError struct {
	resetAfterMS int64
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("rate limited, reset in %dms", e.resetAfterMS)
}
