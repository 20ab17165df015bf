package engine

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/rulectl/rulectl/internal/adapter/outbound/idempotency"
	"github.com/rulectl/rulectl/internal/adapter/outbound/transport"
	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

// TestPush_CreatePushRoundTrip: a brand-new ruleset with a brand-new
// rule, pushed from empty, ends up named by the platform's assigned
// ids with no local-only directories left behind and no ledger entry
// for the organization.
func TestPush_CreatePushRoundTrip(t *testing.T) {
	tr := newFakeTransport()
	reg := newTestRegistry(t, tr, true)
	f := mustFacade(t, reg, "acme")
	ctx := context.Background()

	rsID, err := f.CreateRuleset(ctx, outbound.JSON{"name": "rs-A", "description": "", "ruleIds": []interface{}{}})
	if err != nil {
		t.Fatalf("CreateRuleset: %v", err)
	}
	ruleID, err := f.CreateRule(ctx, rsID, outbound.JSON{"name": "r-1", "type": "file", "enabled": true, "severity": float64(3)}, nil)
	if err != nil {
		t.Fatalf("CreateRule: %v", err)
	}

	if err := f.Push(ctx); err != nil {
		t.Fatalf("Push: %v", err)
	}

	rulesets, err := f.ListRulesets()
	if err != nil {
		t.Fatalf("ListRulesets: %v", err)
	}
	if len(rulesets) != 1 {
		t.Fatalf("rulesets after push = %v, want exactly one", rulesets)
	}
	newRulesetID := rulesets[0]
	if newRulesetID == rsID {
		t.Fatalf("ruleset id %q was not renamed off its local-only id", newRulesetID)
	}

	rules, err := f.ListRules(newRulesetID)
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("rules after push = %v, want exactly one", rules)
	}
	newRuleID := rules[0]
	if newRuleID == ruleID {
		t.Fatalf("rule id %q was not renamed off its local-only id", newRuleID)
	}

	if _, err := f.mirror.ReadRule(newRulesetID, newRuleID); err != nil {
		t.Errorf("rule.json missing after push: %v", err)
	}
	if _, err := f.mirror.ReadTags(newRulesetID, newRuleID); err != nil {
		t.Errorf("tags.json missing after push: %v", err)
	}

	doc := reg.Document()
	if doc.HasOrganization("acme") {
		t.Errorf("ledger still has an entry for acme after a clean push")
	}

	if tr.callCount("PostRuleset") != 1 {
		t.Errorf("PostRuleset calls = %d, want 1", tr.callCount("PostRuleset"))
	}
	if tr.callCount("PostRule") != 1 {
		t.Errorf("PostRule calls = %d, want 1", tr.callCount("PostRule"))
	}
	if tr.callCount("PostTags") != 1 {
		t.Errorf("PostTags calls = %d, want 1 (status both)", tr.callCount("PostTags"))
	}
}

// TestPush_TagsOnlyEditIssuesOnlyPostTags: editing only the tags side
// of an already-remote rule issues exactly one postTags call and no
// putRule.
func TestPush_TagsOnlyEditIssuesOnlyPostTags(t *testing.T) {
	tr := newFakeTransport()
	tr.seedRuleset("acme", "R9", outbound.JSON{"name": "parent"})
	tr.seedRule("acme", "R9", "X9", outbound.JSON{"name": "r9"}, outbound.JSON{"inclusion": []interface{}{}, "exclusion": []interface{}{}})

	reg := newTestRegistry(t, tr, true)
	f := mustFacade(t, reg, "acme")
	ctx := context.Background()

	if err := f.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if err := f.CreateTags(ctx, "X9", outbound.JSON{
		"inclusion": []interface{}{map[string]interface{}{"key": "env", "value": "prod"}},
		"exclusion": []interface{}{},
	}); err != nil {
		t.Fatalf("CreateTags: %v", err)
	}

	doc := reg.Document()
	entry := doc.Ruleset("acme", "R9")
	if entry == nil {
		t.Fatalf("expected a ledger entry for R9")
	}
	if string(entry.Modified) != "false" {
		t.Errorf("R9.modified = %q, want \"false\"", entry.Modified)
	}
	if string(entry.Rules["X9"]) != "tags" {
		t.Errorf("X9 status = %q, want \"tags\"", entry.Rules["X9"])
	}

	if err := f.Push(ctx); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if tr.callCount("PostTags") != 1 {
		t.Errorf("PostTags calls = %d, want 1", tr.callCount("PostTags"))
	}
	if tr.callCount("PutRule") != 0 {
		t.Errorf("PutRule calls = %d, want 0", tr.callCount("PutRule"))
	}
	if tr.callCount("PutRuleset") != 0 {
		t.Errorf("PutRuleset calls = %d, want 0 (ruleset itself untouched)", tr.callCount("PutRuleset"))
	}
}

// TestPush_DeleteParentWipesChildren: deleting a ruleset after editing
// one of its rules issues exactly one deleteRuleset call and no
// per-rule calls.
func TestPush_DeleteParentWipesChildren(t *testing.T) {
	tr := newFakeTransport()
	tr.seedRuleset("acme", "R2", outbound.JSON{"name": "parent"})
	tr.seedRule("acme", "R2", "X3", outbound.JSON{"name": "r3"}, outbound.JSON{})
	tr.seedRule("acme", "R2", "X4", outbound.JSON{"name": "r4"}, outbound.JSON{})

	reg := newTestRegistry(t, tr, true)
	f := mustFacade(t, reg, "acme")
	ctx := context.Background()

	if err := f.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if err := f.UpdateRule(ctx, "X3", outbound.JSON{"name": "r3-edited"}); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}
	if err := f.DeleteRuleset(ctx, "R2"); err != nil {
		t.Fatalf("DeleteRuleset: %v", err)
	}

	doc := reg.Document()
	entry := doc.Ruleset("acme", "R2")
	if entry == nil {
		t.Fatalf("expected a ledger entry for R2")
	}
	if string(entry.Modified) != "del" {
		t.Errorf("R2.modified = %q, want \"del\"", entry.Modified)
	}
	if len(entry.Rules) != 0 {
		t.Errorf("R2.rules = %v, want empty (delete subsumes child edits)", entry.Rules)
	}

	if err := f.Push(ctx); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if tr.callCount("DeleteRuleset") != 1 {
		t.Errorf("DeleteRuleset calls = %d, want 1", tr.callCount("DeleteRuleset"))
	}
	if tr.callCount("PutRule") != 0 || tr.callCount("DeleteRule") != 0 || tr.callCount("PostTags") != 0 {
		t.Errorf("no rule-level calls expected after a ruleset delete: PutRule=%d DeleteRule=%d PostTags=%d",
			tr.callCount("PutRule"), tr.callCount("DeleteRule"), tr.callCount("PostTags"))
	}
}

// TestPush_ResumeAfterCrashSkipsRecordedCreate: a receipt recorded for
// a postRuleset (as a push that crashed between the POST succeeding and
// the ledger rename landing would leave behind) makes the replayed push
// reuse the stored platform id instead of minting a second remote
// ruleset. Receipts are cleared once the organization pushes clean.
func TestPush_ResumeAfterCrashSkipsRecordedCreate(t *testing.T) {
	tr := newFakeTransport()
	ctx := context.Background()

	stateDir := t.TempDir()
	reg, err := NewRegistry(Config{
		StateDir:          stateDir,
		StateFile:         "state.json",
		Lazy:              true,
		Logger:            slog.Default(),
		TransportOverride: tr,
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	receipts, err := idempotency.Open(ctx, filepath.Join(stateDir, "receipts.db"))
	if err != nil {
		t.Fatalf("idempotency.Open: %v", err)
	}
	t.Cleanup(func() { _ = receipts.Close() })
	reg.WithReceipts(receipts)

	f := mustFacade(t, reg, "acme")
	localID, err := f.CreateRuleset(ctx, outbound.JSON{"name": "rs-A"})
	if err != nil {
		t.Fatalf("CreateRuleset: %v", err)
	}

	// Simulate the prior push: its POST reached the platform (rs-77
	// exists remotely, receipt recorded) but the process died before the
	// local rename and ledger save.
	data, err := f.ReadRuleset(localID)
	if err != nil {
		t.Fatalf("ReadRuleset: %v", err)
	}
	key := idempotency.Key{
		Org: "acme", RulesetID: localID, Action: idempotency.ActionPostRuleset,
		ContentHash: transport.ContentHash(data),
	}
	if err := receipts.RecordResult(ctx, key, "rs-77"); err != nil {
		t.Fatalf("RecordResult: %v", err)
	}
	tr.seedRuleset("acme", "rs-77", data)

	if err := f.Push(ctx); err != nil {
		t.Fatalf("Push: %v", err)
	}

	if tr.callCount("PostRuleset") != 0 {
		t.Errorf("PostRuleset calls = %d, want 0 (create already receipted)", tr.callCount("PostRuleset"))
	}
	if _, err := f.ReadRuleset("rs-77"); err != nil {
		t.Errorf("expected local directory renamed to the receipted id rs-77: %v", err)
	}
	if reg.Document().HasOrganization("acme") {
		t.Error("ledger should be clean after the resumed push")
	}

	recorded, err := receipts.Recorded(ctx, key)
	if err != nil {
		t.Fatalf("Recorded: %v", err)
	}
	if recorded {
		t.Error("receipts should be forgotten once the organization pushes clean")
	}
}

// Rate-limit survival is a Transport-layer concern: Push never retries
// at this layer, it delegates entirely to Transport's own RetryPolicy
// (see transport.TestRateLimitSurvival in
// adapter/outbound/transport/client_test.go). Nothing at the engine
// layer would distinguish a rate-limited retry from any other
// Transport call succeeding on the first try.

// TestPush_CrossOrgCopy: copying a rule into an organization that has
// never been touched triggers a refresh of the destination before the
// copy lands, and the copy's name carries the postfix.
func TestPush_CrossOrgCopy(t *testing.T) {
	tr := newFakeTransport()
	tr.seedRuleset("O1", "R1", outbound.JSON{"name": "source ruleset"})
	tr.seedRule("O1", "R1", "X1", outbound.JSON{"name": "r1"}, outbound.JSON{"inclusion": []interface{}{}, "exclusion": []interface{}{}})
	tr.seedRuleset("O2", "R5", outbound.JSON{"name": "dest ruleset"})

	reg := newTestRegistry(t, tr, true)
	src := mustFacade(t, reg, "O1")
	ctx := context.Background()

	if err := src.Refresh(ctx); err != nil {
		t.Fatalf("Refresh(O1): %v", err)
	}

	postfix := "-DUP"
	newID, err := src.CopyRuleOut(ctx, "X1", "R5", "O2", &postfix)
	if err != nil {
		t.Fatalf("CopyRuleOut: %v", err)
	}

	dst := mustFacade(t, reg, "O2")
	rule, err := dst.mirror.ReadRule("R5", newID)
	if err != nil {
		t.Fatalf("ReadRule(O2, R5, %s): %v", newID, err)
	}
	if name, _ := rule["name"].(string); name != "r1-DUP" {
		t.Errorf("copied rule name = %q, want %q", name, "r1-DUP")
	}

	doc := reg.Document()
	if !doc.HasOrganization("O2") {
		t.Errorf("expected O2 to gain a ledger entry from the copy")
	}
	if tr.callCount("GetRulesets") == 0 {
		t.Errorf("expected CopyRuleOut to trigger a refresh of the untouched destination org")
	}
}
