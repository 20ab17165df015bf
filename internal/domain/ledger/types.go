// Package ledger implements the state ledger's data model: the single
// JSON document that tracks which rulesets and rules in which
// organizations carry uncommitted local mutations, and of what kind.
//
// This package is dependency-free and has no knowledge of the
// filesystem or the network — it is the pure data model and mutation
// lattice described by the state ledger component. Persistence lives in
// internal/adapter/outbound/ledgerstore.
package ledger

// LocalSuffix is appended to any identifier minted locally before the
// platform has assigned a real one. Its presence is the sole marker
// that an identifier has never been seen by the remote platform.
const LocalSuffix = "-localonly"

// RuleStatus records which side of a rule is dirty.
type RuleStatus string

const (
	RuleStatusRule RuleStatus = "rule"
	RuleStatusTags RuleStatus = "tags"
	RuleStatusBoth RuleStatus = "both"
	RuleStatusDel  RuleStatus = "del"
)

// RulesetModified records whether a ruleset entry itself was changed,
// is merely a parent of dirty rules, or is pending deletion.
type RulesetModified string

const (
	RulesetModifiedTrue  RulesetModified = "true"
	RulesetModifiedFalse RulesetModified = "false"
	RulesetModifiedDel   RulesetModified = "del"
)

// RulesetEntry is one ruleset's pending mutation state within an
// organization.
type RulesetEntry struct {
	Modified RulesetModified       `json:"modified"`
	Rules    map[string]RuleStatus `json:"rules"`
}

func newRulesetEntry(modified RulesetModified) *RulesetEntry {
	return &RulesetEntry{
		Modified: modified,
		Rules:    make(map[string]RuleStatus),
	}
}

// Document is the top-level ledger shape persisted to disk.
type Document struct {
	Workspace     string                              `json:"workspace"`
	Organizations map[string]map[string]*RulesetEntry `json:"organizations"`
}

// NewDocument returns an empty, valid ledger document.
func NewDocument() *Document {
	return &Document{
		Workspace:     "",
		Organizations: make(map[string]map[string]*RulesetEntry),
	}
}

// HasLocalSuffix reports whether id carries the local-only marker.
func HasLocalSuffix(id string) bool {
	return len(id) > len(LocalSuffix) && id[len(id)-len(LocalSuffix):] == LocalSuffix
}

// mergeStatus implements the lattice rule ∨ tags = both; rule ∨ rule =
// rule; both ∨ anything = both.
func mergeStatus(a, b RuleStatus) RuleStatus {
	if a == RuleStatusBoth || b == RuleStatusBoth {
		return RuleStatusBoth
	}
	if a == b {
		return a
	}
	// one is "rule", the other "tags" (in either order).
	return RuleStatusBoth
}
