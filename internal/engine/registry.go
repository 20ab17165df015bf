// Package engine is the reconciler: refresh, push, and the high-level
// mutation verbs that edit the local mirror and the shared state
// ledger, applying it to the remote platform in the order the ledger
// demands.
package engine

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/rulectl/rulectl/internal/adapter/outbound/idempotency"
	"github.com/rulectl/rulectl/internal/adapter/outbound/ledgerstore"
	"github.com/rulectl/rulectl/internal/adapter/outbound/mirror"
	"github.com/rulectl/rulectl/internal/adapter/outbound/transport"
	"github.com/rulectl/rulectl/internal/domain/ledger"
	"github.com/rulectl/rulectl/internal/observability"
	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

// Config bundles everything needed to construct a Registry.
type Config struct {
	StateDir  string
	StateFile string
	BaseURL   string
	UserID    string
	APIKey    string
	Lazy      bool

	Logger  *slog.Logger
	Metrics *observability.Metrics
	Tracer  trace.Tracer

	RetryPolicy *transport.RetryPolicy

	// TransportOverride lets tests substitute a fake Transport in place
	// of the real HTTP client.
	TransportOverride outbound.Transport
}

// Registry is a process-local, mutex-guarded handle cache: one *Facade
// per organization, all sharing the single state ledger document and
// its on-disk store.
type Registry struct {
	cfg   Config
	store *ledgerstore.Store

	mu       sync.Mutex
	doc      *ledger.Document
	facades  map[string]*Facade
	receipts *idempotency.Log
}

// NewRegistry loads the ledger (or starts a fresh one) and returns a
// ready-to-use Registry.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	store := ledgerstore.New(filepath.Join(cfg.StateDir, cfg.StateFile), cfg.Logger)
	doc, err := store.Load("")
	if err != nil {
		return nil, fmt.Errorf("engine: load ledger: %w", err)
	}
	r := &Registry{
		cfg:     cfg,
		store:   store,
		doc:     doc,
		facades: make(map[string]*Facade),
	}
	r.recordLedgerGauge()
	return r, nil
}

// WithReceipts attaches an idempotency receipt log, enabling
// crash-safe at-most-once delivery during push.
func (r *Registry) WithReceipts(log *idempotency.Log) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.receipts = log
	return r
}

// Workspace returns the ledger's currently selected organization.
func (r *Registry) Workspace() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Workspace
}

// SetWorkspace records the selected organization as a UI hint.
func (r *Registry) SetWorkspace(workspace string) error {
	return r.mutateLedger(func(doc *ledger.Document) error {
		doc.Workspace = workspace
		return nil
	})
}

// Document returns the registry's live ledger document (not a copy),
// for read-only inspection (e.g. the `plan` CLI verb). Callers must not
// mutate the returned value.
func (r *Registry) Document() *ledger.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc
}

// Get returns the cached Facade for org, constructing one (and its
// mirror directory) on first reference. This constructor alone never
// triggers a refresh. Callers that want refresh-on-first-touch
// semantics should use Facade.EnsureRefreshed (the CLI's `workspace`
// verb and the cross-organization copy verbs do this).
func (r *Registry) Get(org string) (*Facade, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if f, ok := r.facades[org]; ok {
		return f, nil
	}

	m, err := mirror.New(filepath.Join(r.cfg.StateDir, org))
	if err != nil {
		return nil, fmt.Errorf("engine: init mirror for %s: %w", org, err)
	}

	var tr outbound.Transport
	if r.cfg.TransportOverride != nil {
		tr = r.cfg.TransportOverride
	} else {
		opts := []transport.Option{
			transport.WithLogger(r.cfg.Logger),
			transport.WithMetrics(r.cfg.Metrics),
		}
		if r.cfg.Tracer != nil {
			opts = append(opts, transport.WithTracer(r.cfg.Tracer))
		}
		if r.cfg.RetryPolicy != nil {
			opts = append(opts, transport.WithRetryPolicy(*r.cfg.RetryPolicy))
		}
		creds := transport.Credentials{UserID: r.cfg.UserID, APIKey: r.cfg.APIKey, Extension: org}
		tr = transport.NewClient(r.cfg.BaseURL, creds, opts...)
	}

	f := &Facade{
		org:       org,
		transport: tr,
		mirror:    m,
		registry:  r,
		lazy:      r.cfg.Lazy,
		logger:    r.cfg.Logger,
		metrics:   r.cfg.Metrics,
		tracer:    r.cfg.Tracer,
		receipts:  r.receipts,
	}
	r.facades[org] = f
	return f, nil
}

// mutateLedger runs fn against the shared ledger document under the
// registry's mutex, persisting the result if fn succeeds. This is the
// sole write path to the ledger file: every verb and every reconciler
// pass goes through it, so the shared document is never written from
// two goroutines at once.
func (r *Registry) mutateLedger(fn func(doc *ledger.Document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := fn(r.doc); err != nil {
		return err
	}
	if err := r.store.Save(r.doc); err != nil {
		return err
	}
	r.recordLedgerGauge()
	return nil
}

// withLedgerLock holds the registry mutex for the duration of fn
// without necessarily mutating the document; used by Push, which reads
// and incrementally writes the ledger across many network calls and
// must exclude concurrent ledger access from other organizations'
// verbs for its whole duration.
func (r *Registry) withLedgerLock(fn func(doc *ledger.Document, save func() error) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	save := func() error {
		if err := r.store.Save(r.doc); err != nil {
			return err
		}
		r.recordLedgerGauge()
		return nil
	}
	return fn(r.doc, save)
}

// recordLedgerGauge sets rulectl_ledger_dirty_rulesets to the number of
// ruleset entries currently carrying pending mutations across every
// organization in the document. Called under r.mu after every
// successful save, so the gauge never lags a persisted ledger state.
func (r *Registry) recordLedgerGauge() {
	if r.cfg.Metrics == nil {
		return
	}
	total := 0
	for _, rulesets := range r.doc.Organizations {
		total += len(rulesets)
	}
	r.cfg.Metrics.LedgerDirtyRulesets.Set(float64(total))
}
