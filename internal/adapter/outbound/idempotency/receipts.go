// Package idempotency records a receipt for every mutation this engine
// has successfully applied to the remote platform, keyed by the
// content hash of the payload that was sent. It exists to close the
// narrow crash window between "the remote call succeeded" and "the
// ledger mutation recording that success was fsynced to disk" (see
// ledgerstore): on restart, Push consults this log before resending a
// mutation whose outcome is otherwise ambiguous.
//
// This is purely additive. It never participates in the ledger's merge
// lattice and never changes non-crash push behavior. Without an
// attached receipt log Push simply resends every mutation; an error
// opening, reading or writing the log is returned to the caller and
// stops the command or push in progress.
package idempotency

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Action identifies which mutation kind a receipt was recorded for.
type Action string

const (
	ActionPostRuleset Action = "post_ruleset"
	ActionPutRuleset  Action = "put_ruleset"
	ActionDelRuleset  Action = "del_ruleset"
	ActionPostRule    Action = "post_rule"
	ActionPutRule     Action = "put_rule"
	ActionDelRule     Action = "del_rule"
	ActionPostTags    Action = "post_tags"
)

// Key identifies one candidate mutation.
type Key struct {
	Org         string
	RulesetID   string
	RuleID      string // empty for ruleset-level actions
	Action      Action
	ContentHash uint64
}

// Log is a crash-durable receipt store backed by an embedded SQLite
// database (modernc.org/sqlite, a pure-Go driver requiring no cgo).
type Log struct {
	db *sql.DB
}

// Open opens (creating if absent) the receipt database at path.
func Open(ctx context.Context, path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("idempotency: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite tolerates one writer at a time

	const schema = `
CREATE TABLE IF NOT EXISTS receipts (
	org          TEXT NOT NULL,
	ruleset_id   TEXT NOT NULL,
	rule_id      TEXT NOT NULL,
	action       TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	result_id    TEXT NOT NULL DEFAULT '',
	applied_at   TEXT NOT NULL,
	PRIMARY KEY (org, ruleset_id, rule_id, action, content_hash)
);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("idempotency: create schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error { return l.db.Close() }

// Recorded reports whether key has already been applied successfully.
func (l *Log) Recorded(ctx context.Context, key Key) (bool, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT 1 FROM receipts
WHERE org = ? AND ruleset_id = ? AND rule_id = ? AND action = ? AND content_hash = ?`,
		key.Org, key.RulesetID, key.RuleID, string(key.Action), hashString(key.ContentHash))

	var one int
	switch err := row.Scan(&one); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, fmt.Errorf("idempotency: query receipt: %w", err)
	}
}

// Record persists that key was successfully applied. Recording twice is
// a no-op (the primary key makes it idempotent by construction).
func (l *Log) Record(ctx context.Context, key Key) error {
	return l.RecordResult(ctx, key, "")
}

// RecordResult persists that key was successfully applied and, for
// create verbs (postRuleset/postRule), the platform-assigned id the
// call returned. A crash between a successful POST and the ledger
// rename that records its id can then resume from the stored id
// instead of resending the create and minting a duplicate remote
// object.
func (l *Log) RecordResult(ctx context.Context, key Key, resultID string) error {
	_, err := l.db.ExecContext(ctx, `
INSERT INTO receipts (org, ruleset_id, rule_id, action, content_hash, result_id, applied_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (org, ruleset_id, rule_id, action, content_hash) DO NOTHING`,
		key.Org, key.RulesetID, key.RuleID, string(key.Action), hashString(key.ContentHash), resultID,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("idempotency: insert receipt: %w", err)
	}
	return nil
}

// Result returns the stored result id for key, if any receipt exists.
func (l *Log) Result(ctx context.Context, key Key) (resultID string, found bool, err error) {
	row := l.db.QueryRowContext(ctx, `
SELECT result_id FROM receipts
WHERE org = ? AND ruleset_id = ? AND rule_id = ? AND action = ? AND content_hash = ?`,
		key.Org, key.RulesetID, key.RuleID, string(key.Action), hashString(key.ContentHash))

	switch err := row.Scan(&resultID); err {
	case nil:
		return resultID, true, nil
	case sql.ErrNoRows:
		return "", false, nil
	default:
		return "", false, fmt.Errorf("idempotency: query result: %w", err)
	}
}

// Forget removes every receipt for an organization, used once a push
// has cleared the organization's ledger entry and when a refresh
// discards its pending mutations.
func (l *Log) Forget(ctx context.Context, org string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM receipts WHERE org = ?`, org)
	if err != nil {
		return fmt.Errorf("idempotency: forget org %s: %w", org, err)
	}
	return nil
}

func hashString(h uint64) string {
	return fmt.Sprintf("%016x", h)
}
