// Package mirror implements the canonical on-disk representation of a
// single organization: a directory per ruleset containing ruleset.json
// plus a subdirectory per rule containing rule.json and tags.json.
//
// Writes are write-to-temp-then-rename so readers never observe a
// partial file.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/rulectl/rulectl/internal/domain/ledger"
	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

// ErrNotFound is returned when locate* fails to find the requested id.
var ErrNotFound = errors.New("mirror: not found")

const (
	rulesetFile = "ruleset.json"
	ruleFile    = "rule.json"
	tagsFile    = "tags.json"

	// backupDir and remoteDir are the transient staging directories used
	// by Refresh's crash-recovery scheme. At rest, under an organization
	// directory, neither exists.
	backupDir = ".backup"
	remoteDir = ".remote"
)

// Mirror operates on one organization's directory.
type Mirror struct {
	orgDir string
}

// New returns a Mirror rooted at orgDir, creating it if absent.
func New(orgDir string) (*Mirror, error) {
	if err := os.MkdirAll(orgDir, 0755); err != nil {
		return nil, fmt.Errorf("mirror: create org dir: %w", err)
	}
	return &Mirror{orgDir: orgDir}, nil
}

// Dir returns the organization's root directory.
func (m *Mirror) Dir() string { return m.orgDir }

// BackupDir and RemoteDir expose the transient staging paths to the
// reconciler's Refresh implementation.
func (m *Mirror) BackupDir() string { return filepath.Join(m.orgDir, backupDir) }
func (m *Mirror) RemoteDir() string { return filepath.Join(m.orgDir, remoteDir) }

func (m *Mirror) rulesetDir(rulesetID string) string {
	return filepath.Join(m.orgDir, rulesetID)
}

func (m *Mirror) ruleDir(rulesetID, ruleID string) string {
	return filepath.Join(m.rulesetDir(rulesetID), ruleID)
}

// isReserved reports whether name is one of the transient staging
// directories (or a .DS_Store entry), never a valid ruleset id.
func isReserved(name string) bool {
	return name == backupDir || name == remoteDir || name == ".DS_Store"
}

// ListRulesets returns every ruleset id present on disk: every
// directory under the organization directory not named .backup,
// .remote or .DS_Store is a ruleset directory.
func (m *Mirror) ListRulesets() ([]string, error) {
	entries, err := os.ReadDir(m.orgDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mirror: list rulesets: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() || isReserved(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	return out, nil
}

// IterRules returns every rule id under the given ruleset.
func (m *Mirror) IterRules(rulesetID string) ([]string, error) {
	entries, err := os.ReadDir(m.rulesetDir(rulesetID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("mirror: iter rules: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out, nil
}

// LocateRuleset returns the ruleset's directory path, or ErrNotFound.
func (m *Mirror) LocateRuleset(rulesetID string) (string, error) {
	dir := m.rulesetDir(rulesetID)
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir, nil
	}
	return "", ErrNotFound
}

// LocateRule performs a linear scan of the organization's ruleset
// directories looking for ruleID. Returns the rule's directory path
// and owning ruleset id, or ErrNotFound.
func (m *Mirror) LocateRule(ruleID string) (dir string, rulesetID string, err error) {
	rulesets, err := m.ListRulesets()
	if err != nil {
		return "", "", err
	}
	for _, rs := range rulesets {
		candidate := m.ruleDir(rs, ruleID)
		if info, statErr := os.Stat(candidate); statErr == nil && info.IsDir() {
			return candidate, rs, nil
		}
	}
	return "", "", ErrNotFound
}

// ReadRuleset reads ruleset.json for rulesetID.
func (m *Mirror) ReadRuleset(rulesetID string) (outbound.JSON, error) {
	return readJSONFile(filepath.Join(m.rulesetDir(rulesetID), rulesetFile))
}

// ReadRule reads rule.json for (rulesetID, ruleID).
func (m *Mirror) ReadRule(rulesetID, ruleID string) (outbound.JSON, error) {
	return readJSONFile(filepath.Join(m.ruleDir(rulesetID, ruleID), ruleFile))
}

// ReadTags reads tags.json for (rulesetID, ruleID).
func (m *Mirror) ReadTags(rulesetID, ruleID string) (outbound.JSON, error) {
	return readJSONFile(filepath.Join(m.ruleDir(rulesetID, ruleID), tagsFile))
}

// WriteRuleset creates or overwrites rulesetID's directory and
// ruleset.json.
func (m *Mirror) WriteRuleset(rulesetID string, data outbound.JSON) error {
	dir := m.rulesetDir(rulesetID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mirror: create ruleset dir: %w", err)
	}
	return writeJSONFile(filepath.Join(dir, rulesetFile), data)
}

// WriteRule creates or overwrites ruleID's directory, rule.json, and
// tags.json (tags defaults to an empty object when nil).
func (m *Mirror) WriteRule(rulesetID, ruleID string, rule, tags outbound.JSON) error {
	dir := m.ruleDir(rulesetID, ruleID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mirror: create rule dir: %w", err)
	}
	if tags == nil {
		tags = outbound.JSON{}
	}
	if err := writeJSONFile(filepath.Join(dir, ruleFile), rule); err != nil {
		return err
	}
	return writeJSONFile(filepath.Join(dir, tagsFile), tags)
}

// WriteRuleFile overwrites rule.json for an existing rule directory,
// leaving tags.json untouched.
func (m *Mirror) WriteRuleFile(rulesetID, ruleID string, rule outbound.JSON) error {
	return writeJSONFile(filepath.Join(m.ruleDir(rulesetID, ruleID), ruleFile), rule)
}

// WriteTags overwrites tags.json for an existing rule directory.
func (m *Mirror) WriteTags(rulesetID, ruleID string, tags outbound.JSON) error {
	return writeJSONFile(filepath.Join(m.ruleDir(rulesetID, ruleID), tagsFile), tags)
}

// RemoveRuleset deletes a ruleset directory and everything under it.
func (m *Mirror) RemoveRuleset(rulesetID string) error {
	if err := os.RemoveAll(m.rulesetDir(rulesetID)); err != nil {
		return fmt.Errorf("mirror: remove ruleset: %w", err)
	}
	return nil
}

// RemoveRule deletes a rule directory under rulesetID.
func (m *Mirror) RemoveRule(rulesetID, ruleID string) error {
	if err := os.RemoveAll(m.ruleDir(rulesetID, ruleID)); err != nil {
		return fmt.Errorf("mirror: remove rule: %w", err)
	}
	return nil
}

// RenameRuleset moves a ruleset directory from oldID to newID, used by
// Push after the platform assigns a real id to a local-only ruleset.
func (m *Mirror) RenameRuleset(oldID, newID string) error {
	return os.Rename(m.rulesetDir(oldID), m.rulesetDir(newID))
}

// RenameRule moves a rule directory from oldID to newID within
// rulesetID.
func (m *Mirror) RenameRule(rulesetID, oldID, newID string) error {
	return os.Rename(m.ruleDir(rulesetID, oldID), m.ruleDir(rulesetID, newID))
}

// MintLocalID generates a fresh "<uuid>-localonly" identifier,
// retrying on the vanishingly unlikely event that existsUnder reports
// the candidate as already taken.
func MintLocalID(existsUnder func(candidate string) bool) string {
	for {
		candidate := uuid.NewString() + ledger.LocalSuffix
		if !existsUnder(candidate) {
			return candidate
		}
	}
}

// MintLocalRulesetID mints a local ruleset id unique within this mirror.
func (m *Mirror) MintLocalRulesetID() string {
	return MintLocalID(func(candidate string) bool {
		_, err := os.Stat(m.rulesetDir(candidate))
		return err == nil
	})
}

// MintLocalRuleID mints a local rule id unique within rulesetID.
func (m *Mirror) MintLocalRuleID(rulesetID string) string {
	return MintLocalID(func(candidate string) bool {
		_, err := os.Stat(m.ruleDir(rulesetID, candidate))
		return err == nil
	})
}

func readJSONFile(path string) (outbound.JSON, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("mirror: read %s: %w", path, err)
	}
	var out outbound.JSON
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("mirror: parse %s: %w", path, err)
	}
	return out, nil
}

// writeJSONFile writes data to path atomically: write to a temp file in
// the same directory, then rename over the target.
func writeJSONFile(path string, data outbound.JSON) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("mirror: marshal %s: %w", path, err)
	}
	encoded = append(encoded, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0644); err != nil {
		return fmt.Errorf("mirror: write temp %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("mirror: rename %s: %w", path, err)
	}
	return nil
}
