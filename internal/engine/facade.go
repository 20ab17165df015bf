package engine

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rulectl/rulectl/internal/adapter/outbound/idempotency"
	"github.com/rulectl/rulectl/internal/adapter/outbound/mirror"
	"github.com/rulectl/rulectl/internal/observability"
	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

// Facade is the one surface external collaborators (CLI, HTTP front
// end) use: it bundles one organization's credentials-backed
// transport, its mirror directory, and a reference to the shared
// ledger document held by its owning Registry.
type Facade struct {
	org       string
	transport outbound.Transport
	mirror    *mirror.Mirror
	registry  *Registry
	lazy      bool

	logger   *slog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
	receipts *idempotency.Log
}

// Org returns the organization id this facade is bound to.
func (f *Facade) Org() string { return f.org }

// Dir returns the organization's mirror directory.
func (f *Facade) Dir() string { return f.mirror.Dir() }

// ListRulesets returns every ruleset id in the local mirror, for
// read-only inspection (the CLI's `list` verb).
func (f *Facade) ListRulesets() ([]string, error) {
	return f.mirror.ListRulesets()
}

// ListRules returns every rule id under rulesetID in the local mirror.
func (f *Facade) ListRules(rulesetID string) ([]string, error) {
	return f.mirror.IterRules(rulesetID)
}

// ReadRuleset returns rulesetID's ruleset.json contents.
func (f *Facade) ReadRuleset(rulesetID string) (outbound.JSON, error) {
	return f.mirror.ReadRuleset(rulesetID)
}

// ReadRule returns ruleID's rule.json contents within rulesetID.
func (f *Facade) ReadRule(rulesetID, ruleID string) (outbound.JSON, error) {
	return f.mirror.ReadRule(rulesetID, ruleID)
}

// startSpan opens a span named "engine.<name>" on the facade's tracer,
// matching transport.Client.startSpan's nil-tracer fallback so callers
// never need to check for one themselves.
func (f *Facade) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if f.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return f.tracer.Start(ctx, "engine."+name, trace.WithAttributes(attrs...))
}

// recordRefresh increments rulectl_refresh_total for the given outcome
// ("ok", "error", or "cancelled").
func (f *Facade) recordRefresh(outcome string) {
	if f.metrics == nil {
		return
	}
	f.metrics.RefreshTotal.WithLabelValues(outcome).Inc()
}

// recordPushItem increments rulectl_push_items_total for one applied
// ledger item, labeled by kind ("ruleset", "rule", "tags", or
// "delete").
func (f *Facade) recordPushItem(kind string) {
	if f.metrics == nil {
		return
	}
	f.metrics.PushItemsTotal.WithLabelValues(kind).Inc()
}
