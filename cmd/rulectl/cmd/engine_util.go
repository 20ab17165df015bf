package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rulectl/rulectl/internal/adapter/outbound/idempotency"
	"github.com/rulectl/rulectl/internal/adapter/outbound/transport"
	"github.com/rulectl/rulectl/internal/config"
	"github.com/rulectl/rulectl/internal/engine"
	"github.com/rulectl/rulectl/internal/observability"
	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

// buildRegistry loads configuration (applying the --state override, if
// any), and constructs a ready-to-use engine.Registry shared by every
// command in this package.
func buildRegistry() (*engine.Registry, *config.Config, error) {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if stateFlag != "" {
		cfg.StateDir = stateFlag
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel)
	metrics := observability.NewMetrics(nil)
	tp, shutdown := observability.NewTracerProvider(cfg.DevMode)
	tracerShutdowns = append(tracerShutdowns, shutdown)

	backoff, err := time.ParseDuration(cfg.Retry.Backoff)
	if err != nil {
		return nil, nil, fmt.Errorf("parse retry.backoff: %w", err)
	}
	retryPolicy := transport.RetryPolicy{MaxAttempts: cfg.Retry.MaxAttempts, Backoff: backoff}

	reg, err := engine.NewRegistry(engine.Config{
		StateDir:    cfg.StateDir,
		StateFile:   cfg.StateFile,
		BaseURL:     cfg.BaseURL,
		UserID:      cfg.Credentials.UserID,
		APIKey:      cfg.Credentials.APIKey,
		Lazy:        cfg.LazyEval,
		Logger:      logger,
		Metrics:     metrics,
		Tracer:      observability.Tracer(tp),
		RetryPolicy: &retryPolicy,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build engine registry: %w", err)
	}

	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create state dir: %w", err)
	}
	receipts, err := idempotency.Open(context.Background(), filepath.Join(cfg.StateDir, "receipts.db"))
	if err != nil {
		return nil, nil, fmt.Errorf("open idempotency log: %w", err)
	}
	receiptCloses = append(receiptCloses, receipts.Close)
	reg.WithReceipts(receipts)

	return reg, cfg, nil
}

// receiptCloses collects every idempotency log opened by buildRegistry
// during this process's lifetime, closed alongside the tracer providers.
var receiptCloses []func() error

func closeReceipts() {
	for _, fn := range receiptCloses {
		_ = fn()
	}
}

// tracerShutdowns collects the shutdown funcs of every tracer provider
// built by buildRegistry during this process's lifetime, so root.go's
// Execute can flush them before exit regardless of which command ran.
var tracerShutdowns []func(context.Context) error

// shutdownTracers flushes every tracer provider built this run. Safe to
// call even if buildRegistry was never invoked.
func shutdownTracers(ctx context.Context) {
	for _, fn := range tracerShutdowns {
		_ = fn(ctx)
	}
}

// resolveOrg returns the explicit --org flag value, falling back to
// the ledger's current workspace. Returns an error if neither is set.
func resolveOrg(orgFlag string, reg *engine.Registry) (string, error) {
	if orgFlag != "" {
		return orgFlag, nil
	}
	if ws := reg.Workspace(); ws != "" {
		return ws, nil
	}
	return "", fmt.Errorf("no organization given: pass --org or set one with 'rulectl workspace <org_id>'")
}

// readJSONPayload reads a JSON object from path, or from stdin when
// path is "-" or empty.
func readJSONPayload(path string) (outbound.JSON, error) {
	var r io.Reader
	if path == "" || path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open payload file: %w", err)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	var out outbound.JSON
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse payload JSON: %w", err)
	}
	return out, nil
}

var orgFlagUsage = "organization id (defaults to the current workspace)"
