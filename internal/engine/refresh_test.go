package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	outbound "github.com/rulectl/rulectl/internal/port/outbound"
	"go.uber.org/goleak"
)

func TestRefresh_PullsRemoteIntoMirror(t *testing.T) {
	tr := newFakeTransport()
	tr.seedRuleset("acme", "rs1", outbound.JSON{"name": "ruleset one"})
	tr.seedRule("acme", "rs1", "x1", outbound.JSON{"name": "rule one"}, outbound.JSON{"inclusion": []interface{}{"host1"}})

	reg := newTestRegistry(t, tr, true)
	f := mustFacade(t, reg, "acme")

	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	rulesets, err := f.ListRulesets()
	if err != nil {
		t.Fatalf("ListRulesets: %v", err)
	}
	if len(rulesets) != 1 || rulesets[0] != "rs1" {
		t.Fatalf("rulesets = %v, want [rs1]", rulesets)
	}

	data, err := f.ReadRuleset("rs1")
	if err != nil {
		t.Fatalf("ReadRuleset: %v", err)
	}
	if data["name"] != "ruleset one" {
		t.Errorf("ruleset name = %v, want %q", data["name"], "ruleset one")
	}

	rules, err := f.ListRules("rs1")
	if err != nil {
		t.Fatalf("ListRules: %v", err)
	}
	if len(rules) != 1 || rules[0] != "x1" {
		t.Fatalf("rules = %v, want [x1]", rules)
	}

	// rule.json must be POSTable as-is: the id the list entry carried is
	// the directory name, not part of the payload.
	rule, err := f.ReadRule("rs1", "x1")
	if err != nil {
		t.Fatalf("ReadRule: %v", err)
	}
	if _, ok := rule["id"]; ok {
		t.Errorf("rule.json retains the server-side id field: %v", rule)
	}
	if _, ok := rule["rulesetId"]; ok {
		t.Errorf("rule.json retains the rulesetId back-reference: %v", rule)
	}
	if rule["name"] != "rule one" {
		t.Errorf("rule name = %v, want %q", rule["name"], "rule one")
	}
}

func TestRefresh_DiscardsStagingDirectoriesAfterward(t *testing.T) {
	tr := newFakeTransport()
	tr.seedRuleset("acme", "rs1", outbound.JSON{"name": "r1"})

	reg := newTestRegistry(t, tr, true)
	f := mustFacade(t, reg, "acme")
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	for _, staging := range []string{".backup", ".remote"} {
		if _, err := os.Stat(filepath.Join(f.Dir(), staging)); !os.IsNotExist(err) {
			t.Errorf("expected %s to be removed after a clean refresh, stat err = %v", staging, err)
		}
	}
}

func TestRefresh_ClearsPendingLedgerEntries(t *testing.T) {
	tr := newFakeTransport()
	tr.seedRuleset("acme", "rs1", outbound.JSON{"name": "r1"})

	reg := newTestRegistry(t, tr, true)
	f := mustFacade(t, reg, "acme")

	if _, err := f.CreateRuleset(context.Background(), outbound.JSON{"name": "local edit"}); err != nil {
		t.Fatalf("CreateRuleset: %v", err)
	}
	if !reg.Document().HasOrganization("acme") {
		t.Fatal("expected a pending ledger entry before refresh")
	}

	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if reg.Document().HasOrganization("acme") {
		t.Error("expected refresh to discard pending ledger entries for the organization")
	}
}

func TestRefresh_FetchFailureRestoresPriorMirror(t *testing.T) {
	tr := newFakeTransport()
	reg := newTestRegistry(t, tr, true)
	f := mustFacade(t, reg, "acme")

	// Establish a known-good mirror first.
	tr.seedRuleset("acme", "rs1", outbound.JSON{"name": "good"})
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("initial Refresh: %v", err)
	}

	tr.failGetRulesets = errors.New("simulated network failure")
	err := f.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected Refresh to fail when the remote fetch fails")
	}

	data, readErr := f.ReadRuleset("rs1")
	if readErr != nil {
		t.Fatalf("expected the pre-refresh mirror to survive a failed refresh, ReadRuleset: %v", readErr)
	}
	if data["name"] != "good" {
		t.Errorf("ruleset name = %v, want %q (restored)", data["name"], "good")
	}

	for _, staging := range []string{".backup", ".remote"} {
		if _, statErr := os.Stat(filepath.Join(f.Dir(), staging)); !os.IsNotExist(statErr) {
			t.Errorf("expected %s to be cleaned up after restore, stat err = %v", staging, statErr)
		}
	}
}

func TestRefresh_RecoversFromLeftoverBackupDirectory(t *testing.T) {
	tr := newFakeTransport()
	tr.seedRuleset("acme", "rs-fresh", outbound.JSON{"name": "fresh"})

	reg := newTestRegistry(t, tr, true)
	f := mustFacade(t, reg, "acme")

	// Simulate a process killed between stageBackup and promote: orgDir
	// is empty (rulesets already moved aside) and .backup holds the
	// pre-crash mirror.
	if err := os.MkdirAll(filepath.Join(f.Dir(), ".backup", "rs-stale"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.Dir(), ".backup", "rs-stale", "ruleset.json"), []byte(`{"name":"stale"}`), 0644); err != nil {
		t.Fatal(err)
	}

	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	rulesets, err := f.ListRulesets()
	if err != nil {
		t.Fatalf("ListRulesets: %v", err)
	}
	if len(rulesets) != 1 || rulesets[0] != "rs-fresh" {
		t.Fatalf("rulesets = %v, want [rs-fresh] (crash recovery then fresh fetch)", rulesets)
	}
}

func TestRefresh_CancellationSurvivesWithoutLeakingGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	tr := newFakeTransport()
	tr.seedRuleset("acme", "rs1", outbound.JSON{"name": "good"})

	reg := newTestRegistry(t, tr, true)
	f := mustFacade(t, reg, "acme")
	if err := f.Refresh(context.Background()); err != nil {
		t.Fatalf("initial Refresh: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr.seedRuleset("acme", "rs2", outbound.JSON{"name": "new"})
	err := f.Refresh(ctx)
	if err == nil {
		t.Fatal("expected Refresh to fail on an already-cancelled context")
	}

	data, readErr := f.ReadRuleset("rs1")
	if readErr != nil || data["name"] != "good" {
		t.Errorf("expected prior mirror restored after cancellation, got data=%v err=%v", data, readErr)
	}
}
