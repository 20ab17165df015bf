// Package observability provides the structured logging, metrics, and
// tracing setup shared by the CLI and the engine: log/slog for logs,
// Prometheus for counters, OpenTelemetry for spans.
package observability

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a slog.Logger writing text-formatted records to
// stderr at the given level ("debug", "info", "warn", "error";
// defaults to "info" for anything else).
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
