package ledger

// AddOrganization is an idempotent create of organizations[o].
func (d *Document) AddOrganization(org string) {
	if _, ok := d.Organizations[org]; !ok {
		d.Organizations[org] = make(map[string]*RulesetEntry)
	}
}

// DeleteOrganization removes the organization's entire ledger entry.
// Used only on successful Push completion and Refresh completion.
func (d *Document) DeleteOrganization(org string) {
	delete(d.Organizations, org)
}

// HasOrganization reports whether the organization carries any ledger
// entry at all (even an empty one).
func (d *Document) HasOrganization(org string) bool {
	_, ok := d.Organizations[org]
	return ok
}

// Ruleset returns the ledger entry for (org, ruleset), or nil if absent.
func (d *Document) Ruleset(org, ruleset string) *RulesetEntry {
	rulesets, ok := d.Organizations[org]
	if !ok {
		return nil
	}
	return rulesets[ruleset]
}

// AddRuleset records that a ruleset was edited, created, or (via a
// separate call) marked for deletion.
//
// Transitions:
//   - absent -> action: always allowed, creates the entry.
//   - "false" -> "true": allowed (a rule-only edit is promoted to a
//     full ruleset edit).
//   - "true" -> "false": forbidden (a local-only ruleset must stay
//     modified=true, and downgrading a genuine edit silently loses it
//     for a remote one).
//   - anything -> "del" is handled by DeleteRuleset, not here.
//   - adding to a "del" entry is forbidden.
func (d *Document) AddRuleset(org, ruleset string, action RulesetModified) error {
	if action == RulesetModifiedDel {
		return invariantf("addRuleset", "use DeleteRuleset to mark %s/%s for deletion", org, ruleset)
	}

	d.AddOrganization(org)
	entry := d.Organizations[org][ruleset]

	if entry == nil {
		d.Organizations[org][ruleset] = newRulesetEntry(action)
		return nil
	}

	switch entry.Modified {
	case RulesetModifiedDel:
		return invariantf("addRuleset", "%s/%s is pending deletion, cannot add further edits", org, ruleset)
	case RulesetModifiedTrue:
		if action == RulesetModifiedFalse {
			return invariantf("addRuleset", "%s/%s: cannot downgrade modified=true to false", org, ruleset)
		}
		// true -> true: no-op.
	case RulesetModifiedFalse:
		if action == RulesetModifiedTrue {
			entry.Modified = RulesetModifiedTrue
		}
		// false -> false: no-op.
	}
	return nil
}

// DeleteRuleset marks a ruleset for deletion, or — if it is local-only
// — erases it from the ledger outright (it has no remote counterpart to
// delete). recursive controls whether dangling rule entries are
// dropped silently; it must be true when called from a real delete, and
// is only false for diagnostic/dry-run callers.
//
// A "del" entry carries no rules: a ruleset delete subsumes all child
// edits.
func (d *Document) DeleteRuleset(org, ruleset string, recursive bool) error {
	entry := d.Ruleset(org, ruleset)

	if HasLocalSuffix(ruleset) {
		if entry != nil && entry.Modified != RulesetModifiedTrue {
			return invariantf("deleteRuleset", "local-only ruleset %s/%s must have modified=true", org, ruleset)
		}
		if entry != nil {
			if !recursive && len(entry.Rules) > 0 {
				return invariantf("deleteRuleset", "%s/%s has dangling rule entries, recursive delete required", org, ruleset)
			}
			delete(d.Organizations[org], ruleset)
			d.pruneOrgIfEmpty(org)
		}
		return nil
	}

	d.AddOrganization(org)
	d.Organizations[org][ruleset] = &RulesetEntry{
		Modified: RulesetModifiedDel,
		Rules:    make(map[string]RuleStatus),
	}
	return nil
}

// AddRule merges a dirty-rule marker into the ledger, creating the
// enclosing ruleset entry (with modified="false") if it is absent, and
// merging with any existing status via the lattice rule ∨ tags = both;
// rule ∨ rule = rule; both ∨ anything = both.
//
// A rule id carrying the local suffix must end up with status "rule"
// or "both" — a brand-new rule cannot be tags-only.
func (d *Document) AddRule(org, ruleset, rule string, endpoint RuleStatus) error {
	if endpoint != RuleStatusRule && endpoint != RuleStatusTags && endpoint != RuleStatusBoth {
		return invariantf("addRule", "invalid endpoint status %q", endpoint)
	}

	d.AddOrganization(org)
	entry := d.Organizations[org][ruleset]
	if entry == nil {
		entry = newRulesetEntry(RulesetModifiedFalse)
		d.Organizations[org][ruleset] = entry
	}
	if entry.Modified == RulesetModifiedDel {
		return invariantf("addRule", "%s/%s is pending deletion, cannot add rule %s", org, ruleset, rule)
	}

	existing, ok := entry.Rules[rule]
	merged := endpoint
	if ok {
		merged = mergeStatus(existing, endpoint)
	}

	if HasLocalSuffix(rule) && merged != RuleStatusRule && merged != RuleStatusBoth {
		return invariantf("addRule", "local-only rule %s/%s cannot be tags-only", ruleset, rule)
	}

	entry.Rules[rule] = merged
	return nil
}

// DeleteRule removes rule x from whatever ruleset entry contains it. If
// that leaves a ruleset entry with zero rules and modified=="false", the
// ruleset entry is dropped too — nothing about it is dirty anymore, so
// it has no reason to exist. Organizations that scope
// ruleset ids uniquely pass org explicitly; the ruleset containing x is
// located by linear scan of the organization's ledger entries. A rule
// found in no entry is a no-op when the organization has a
// pending-deletion ruleset, and ErrNotFound otherwise.
func (d *Document) DeleteRule(org, rule string) error {
	rulesets, ok := d.Organizations[org]
	if !ok {
		return ErrNotFound
	}

	for rsID, entry := range rulesets {
		if _, found := entry.Rules[rule]; !found {
			continue
		}
		if entry.Modified == RulesetModifiedDel {
			// A pending-deletion ruleset has no rule entries; nothing to do.
			return nil
		}
		delete(entry.Rules, rule)
		if entry.Modified == RulesetModifiedFalse && len(entry.Rules) == 0 {
			delete(rulesets, rsID)
			d.pruneOrgIfEmpty(org)
		}
		return nil
	}
	for _, entry := range rulesets {
		if entry.Modified == RulesetModifiedDel {
			// A pending-deletion ruleset keeps no rule entries (I3), so
			// rule may have been one of its children; nothing to do.
			return nil
		}
	}
	return ErrNotFound
}

// RulesetOf returns the id of the ruleset that currently owns rule
// within org, or "" if not found in the ledger.
func (d *Document) RulesetOf(org, rule string) string {
	rulesets, ok := d.Organizations[org]
	if !ok {
		return ""
	}
	for rsID, entry := range rulesets {
		if _, found := entry.Rules[rule]; found {
			return rsID
		}
	}
	return ""
}

// RenameRuleset moves a ledger entry from oldID to newID, used by Push
// after a local-only ruleset has been assigned a platform id.
func (d *Document) RenameRuleset(org, oldID, newID string) {
	rulesets, ok := d.Organizations[org]
	if !ok {
		return
	}
	entry, ok := rulesets[oldID]
	if !ok {
		return
	}
	delete(rulesets, oldID)
	rulesets[newID] = entry
}

// RenameRule moves a rule's dirty-status entry from oldID to newID
// within ruleset, used by Push after a local-only rule has been
// assigned a platform id.
func (d *Document) RenameRule(org, ruleset, oldID, newID string) {
	entry := d.Ruleset(org, ruleset)
	if entry == nil {
		return
	}
	status, ok := entry.Rules[oldID]
	if !ok {
		return
	}
	delete(entry.Rules, oldID)
	entry.Rules[newID] = status
}

func (d *Document) pruneOrgIfEmpty(org string) {
	if len(d.Organizations[org]) == 0 {
		delete(d.Organizations, org)
	}
}
