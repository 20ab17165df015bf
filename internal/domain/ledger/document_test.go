package ledger

import (
	"errors"
	"testing"
)

func TestAddRuleCreatesParentRuleset(t *testing.T) {
	d := NewDocument()
	if err := d.AddRule("org1", "rs1", "rule1", RuleStatusRule); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	entry := d.Ruleset("org1", "rs1")
	if entry == nil {
		t.Fatal("expected ruleset entry to be created")
	}
	if entry.Modified != RulesetModifiedFalse {
		t.Errorf("modified = %q, want %q", entry.Modified, RulesetModifiedFalse)
	}
	if entry.Rules["rule1"] != RuleStatusRule {
		t.Errorf("rule status = %q, want %q", entry.Rules["rule1"], RuleStatusRule)
	}
}

func TestMergeLattice(t *testing.T) {
	cases := []struct {
		a, b, want RuleStatus
	}{
		{RuleStatusRule, RuleStatusTags, RuleStatusBoth},
		{RuleStatusTags, RuleStatusRule, RuleStatusBoth},
		{RuleStatusRule, RuleStatusRule, RuleStatusRule},
		{RuleStatusTags, RuleStatusTags, RuleStatusTags},
		{RuleStatusBoth, RuleStatusRule, RuleStatusBoth},
		{RuleStatusRule, RuleStatusBoth, RuleStatusBoth},
	}
	for _, c := range cases {
		d1 := NewDocument()
		_ = d1.AddRule("o", "r", "x", c.a)
		_ = d1.AddRule("o", "r", "x", c.b)

		d2 := NewDocument()
		_ = d2.AddRule("o", "r", "x", c.want)

		got := d1.Ruleset("o", "r").Rules["x"]
		if got != d2.Ruleset("o", "r").Rules["x"] || got != c.want {
			t.Errorf("merge(%s,%s) = %s, want %s", c.a, c.b, got, c.want)
		}
	}
}

func TestDeleteSubsumption(t *testing.T) {
	d := NewDocument()
	if err := d.AddRule("o", "r", "x", RuleStatusBoth); err != nil {
		t.Fatal(err)
	}
	if err := d.DeleteRule("o", "x"); err != nil {
		t.Fatal(err)
	}
	if entry := d.Ruleset("o", "r"); entry != nil {
		if status, ok := entry.Rules["x"]; ok {
			t.Errorf("rule x still present with status %s", status)
		}
	}
}

func TestDeleteRuleDropsEmptyFalseRuleset(t *testing.T) {
	d := NewDocument()
	_ = d.AddRule("o", "r", "x", RuleStatusRule)
	if err := d.DeleteRule("o", "x"); err != nil {
		t.Fatal(err)
	}
	if d.Ruleset("o", "r") != nil {
		t.Error("expected the empty modified=false ruleset entry to be pruned")
	}
	if d.HasOrganization("o") {
		t.Error("expected organization entry to be pruned once empty")
	}
}

func TestAddRulesetForbidsTrueToFalse(t *testing.T) {
	d := NewDocument()
	if err := d.AddRuleset("o", "r", RulesetModifiedTrue); err != nil {
		t.Fatal(err)
	}
	err := d.AddRuleset("o", "r", RulesetModifiedFalse)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant error downgrading true->false, got %v", err)
	}
}

func TestAddRulesetAllowsFalseToTrue(t *testing.T) {
	d := NewDocument()
	_ = d.AddRule("o", "r", "x", RuleStatusRule) // creates modified=false
	if err := d.AddRuleset("o", "r", RulesetModifiedTrue); err != nil {
		t.Fatalf("upgrade false->true should be allowed: %v", err)
	}
	if d.Ruleset("o", "r").Modified != RulesetModifiedTrue {
		t.Error("expected modified=true after upgrade")
	}
}

func TestAddRulesetForbidsEditingDeleted(t *testing.T) {
	d := NewDocument()
	_ = d.AddRuleset("o", "r", RulesetModifiedTrue)
	if err := d.DeleteRuleset("o", "r", true); err != nil {
		t.Fatal(err)
	}
	err := d.AddRuleset("o", "r", RulesetModifiedTrue)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant error editing a del entry, got %v", err)
	}
}

func TestDeleteRulesetLocalOnlyErasesEntry(t *testing.T) {
	d := NewDocument()
	local := "11111111-1111-1111-1111-111111111111" + LocalSuffix
	_ = d.AddRuleset("o", local, RulesetModifiedTrue)
	if err := d.DeleteRuleset("o", local, true); err != nil {
		t.Fatal(err)
	}
	if d.Ruleset("o", local) != nil {
		t.Error("local-only ruleset delete should erase the ledger entry, not mark del")
	}
}

func TestDeleteRulesetRemoteMarksDel(t *testing.T) {
	d := NewDocument()
	_ = d.AddRule("o", "r9", "x1", RuleStatusRule)
	if err := d.DeleteRuleset("o", "r9", true); err != nil {
		t.Fatal(err)
	}
	entry := d.Ruleset("o", "r9")
	if entry == nil || entry.Modified != RulesetModifiedDel {
		t.Fatalf("expected modified=del, got %+v", entry)
	}
	if len(entry.Rules) != 0 {
		t.Errorf("rules not cleared on delete: %+v", entry.Rules)
	}
}

func TestAddRuleRejectsTagsOnlyLocalRule(t *testing.T) {
	d := NewDocument()
	local := "22222222-2222-2222-2222-222222222222" + LocalSuffix
	err := d.AddRule("o", "r", local, RuleStatusTags)
	if !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected invariant violation for a tags-only local rule, got %v", err)
	}
}

func TestDeleteRuleOnPendingDeletionIsNoop(t *testing.T) {
	d := NewDocument()
	_ = d.AddRule("o", "r", "x", RuleStatusRule)
	_ = d.DeleteRuleset("o", "r", true)
	if err := d.DeleteRule("o", "x"); err != nil {
		t.Fatalf("delete of rule under pending-deletion ruleset should be a no-op, got %v", err)
	}
}
