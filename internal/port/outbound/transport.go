// Package outbound defines the outbound port interfaces the reconciler
// consumes: the signed, retrying Transport client and nothing else.
// Adapters implement this to talk to the real remote platform (or, in
// tests, a stub).
package outbound

import "context"

// JSON is an opaque, pass-through JSON object. The reconciler never
// interprets fields beyond a handful of well-known ones ("name", "id")
// — it is the remote platform's schema to own.
type JSON = map[string]interface{}

// Transport is the outbound port for the remote rule-management
// platform: one method per verb/resource pair, parameterized only by
// identifiers and an opaque JSON payload. The single-resource GET
// methods normalize responses to their POSTable shape (the list GETs
// keep each entry's id), and every method retries internally per the
// configured RetryPolicy; callers never see a rate-limit condition,
// only an error after retries are exhausted.
type Transport interface {
	GetRulesets(ctx context.Context, org string) ([]JSON, error)
	GetRuleset(ctx context.Context, org, rulesetID string) (JSON, error)
	GetRulesetRules(ctx context.Context, org, rulesetID string) ([]JSON, error)
	GetRule(ctx context.Context, org, rulesetID, ruleID string) (JSON, error)
	GetRuleTags(ctx context.Context, org, ruleID string) (JSON, error)

	// PostRuleset creates a ruleset and returns the platform-assigned id.
	PostRuleset(ctx context.Context, org string, data JSON) (string, error)
	PutRuleset(ctx context.Context, org, rulesetID string, data JSON) error
	DeleteRuleset(ctx context.Context, org, rulesetID string) error

	// PostRule creates a rule under rulesetID and returns the
	// platform-assigned id.
	PostRule(ctx context.Context, org, rulesetID string, data JSON) (string, error)
	PutRule(ctx context.Context, org, rulesetID, ruleID string, data JSON) error
	DeleteRule(ctx context.Context, org, rulesetID, ruleID string) error

	PostTags(ctx context.Context, org, ruleID string, data JSON) error
}
