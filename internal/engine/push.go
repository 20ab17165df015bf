package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/rulectl/rulectl/internal/adapter/outbound/idempotency"
	"github.com/rulectl/rulectl/internal/adapter/outbound/transport"
	"github.com/rulectl/rulectl/internal/domain/ledger"
)

// Push iterates the organization's ledger entries in a single pass,
// applying each to the remote platform in dependency order: ruleset
// PUT/POST/DELETE first, then per-rule PUT/POST and its tags POST,
// then rule DELETE. It is NOT cancellation-safe: an interrupted push
// leaves the ledger partially consumed (every item committed so far is
// saved before the error is returned), and the caller must re-run Push
// to finish. Push never retries at this layer; Transport already
// retries within a single call per its own RetryPolicy.
func (f *Facade) Push(ctx context.Context) error {
	return f.registry.withLedgerLock(func(doc *ledger.Document, save func() error) error {
		orgEntries, ok := doc.Organizations[f.org]
		if !ok {
			return nil
		}

		rulesetIDs := make([]string, 0, len(orgEntries))
		for id := range orgEntries {
			rulesetIDs = append(rulesetIDs, id)
		}

		for _, rulesetID := range rulesetIDs {
			entry, exists := orgEntries[rulesetID]
			if !exists {
				continue // already consumed earlier in this same pass via a rename
			}

			finalID, err := f.pushRuleset(ctx, doc, rulesetID, entry)
			if err != nil {
				_ = save()
				return fmt.Errorf("engine: push %s/%s: %w", f.org, rulesetID, err)
			}

			delete(doc.Organizations[f.org], finalID)
			if len(doc.Organizations[f.org]) == 0 {
				delete(doc.Organizations, f.org)
			}
			if err := save(); err != nil {
				return err
			}
		}

		// Receipts only cover the crash window within one push
		// generation. Once the organization is clean they must go, or a
		// future edit that happens to reproduce an old payload would be
		// skipped as already-applied.
		if f.receipts != nil {
			if err := f.receipts.Forget(ctx, f.org); err != nil {
				return err
			}
		}
		return nil
	})
}

// pushRuleset applies one ruleset entry and, unless it was a deletion,
// every dirty rule beneath it. It returns the id the ruleset is known
// by after this call (unchanged, unless a local-only ruleset was just
// assigned a platform id).
func (f *Facade) pushRuleset(ctx context.Context, doc *ledger.Document, rulesetID string, entry *ledger.RulesetEntry) (string, error) {
	switch entry.Modified {
	case ledger.RulesetModifiedDel:
		if err := f.withReceipt(ctx, idempotency.Key{
			Org: f.org, RulesetID: rulesetID, Action: idempotency.ActionDelRuleset,
		}, func() error {
			return f.transport.DeleteRuleset(ctx, f.org, rulesetID)
		}); err != nil {
			return rulesetID, err
		}
		if err := f.mirror.RemoveRuleset(rulesetID); err != nil && !os.IsNotExist(err) {
			return rulesetID, err
		}
		f.recordPushItem("delete")
		return rulesetID, nil

	case ledger.RulesetModifiedTrue:
		data, err := f.mirror.ReadRuleset(rulesetID)
		if err != nil {
			return rulesetID, err
		}
		finalID := rulesetID
		if ledger.HasLocalSuffix(rulesetID) {
			newID, err := f.postRulesetWithReceipt(ctx, rulesetID, data)
			if err != nil {
				return rulesetID, err
			}
			if err := f.mirror.RenameRuleset(rulesetID, newID); err != nil {
				return rulesetID, err
			}
			doc.RenameRuleset(f.org, rulesetID, newID)
			finalID = newID
		} else {
			if err := f.withReceipt(ctx, idempotency.Key{
				Org: f.org, RulesetID: rulesetID, Action: idempotency.ActionPutRuleset,
				ContentHash: transport.ContentHash(data),
			}, func() error {
				return f.transport.PutRuleset(ctx, f.org, rulesetID, data)
			}); err != nil {
				return rulesetID, err
			}
		}
		f.recordPushItem("ruleset")
		if err := f.pushRules(ctx, doc, finalID, doc.Organizations[f.org][finalID]); err != nil {
			return finalID, err
		}
		return finalID, nil

	case ledger.RulesetModifiedFalse:
		if err := f.pushRules(ctx, doc, rulesetID, entry); err != nil {
			return rulesetID, err
		}
		return rulesetID, nil
	}
	return rulesetID, fmt.Errorf("unknown ruleset modified state %q", entry.Modified)
}

func (f *Facade) pushRules(ctx context.Context, doc *ledger.Document, rulesetID string, entry *ledger.RulesetEntry) error {
	if entry == nil {
		return nil
	}
	ruleIDs := make([]string, 0, len(entry.Rules))
	var delIDs []string
	for id, status := range entry.Rules {
		if status == ledger.RuleStatusDel {
			delIDs = append(delIDs, id)
			continue
		}
		ruleIDs = append(ruleIDs, id)
	}
	// Rule deletes go after every rule create/update in this ruleset.
	ruleIDs = append(ruleIDs, delIDs...)
	for _, ruleID := range ruleIDs {
		status, exists := entry.Rules[ruleID]
		if !exists {
			continue
		}
		if err := f.pushRule(ctx, doc, rulesetID, ruleID, status); err != nil {
			return err
		}
	}
	return nil
}

func (f *Facade) pushRule(ctx context.Context, doc *ledger.Document, rulesetID, ruleID string, status ledger.RuleStatus) error {
	entry := doc.Organizations[f.org][rulesetID]

	switch status {
	case ledger.RuleStatusDel:
		if err := f.withReceipt(ctx, idempotency.Key{
			Org: f.org, RulesetID: rulesetID, RuleID: ruleID, Action: idempotency.ActionDelRule,
		}, func() error {
			return f.transport.DeleteRule(ctx, f.org, rulesetID, ruleID)
		}); err != nil {
			return err
		}
		if err := f.mirror.RemoveRule(rulesetID, ruleID); err != nil && !os.IsNotExist(err) {
			return err
		}
		delete(entry.Rules, ruleID)
		f.recordPushItem("delete")
		return nil

	case ledger.RuleStatusRule, ledger.RuleStatusBoth:
		rule, err := f.mirror.ReadRule(rulesetID, ruleID)
		if err != nil {
			return err
		}
		finalRuleID := ruleID
		if ledger.HasLocalSuffix(ruleID) {
			newID, err := f.postRuleWithReceipt(ctx, rulesetID, ruleID, rule)
			if err != nil {
				return err
			}
			if err := f.mirror.RenameRule(rulesetID, ruleID, newID); err != nil {
				return err
			}
			doc.RenameRule(f.org, rulesetID, ruleID, newID)
			finalRuleID = newID
		} else {
			if err := f.withReceipt(ctx, idempotency.Key{
				Org: f.org, RulesetID: rulesetID, RuleID: ruleID, Action: idempotency.ActionPutRule,
				ContentHash: transport.ContentHash(rule),
			}, func() error {
				return f.transport.PutRule(ctx, f.org, rulesetID, ruleID, rule)
			}); err != nil {
				return err
			}
		}
		f.recordPushItem("rule")

		if status == ledger.RuleStatusBoth {
			tags, err := f.mirror.ReadTags(rulesetID, finalRuleID)
			if err != nil {
				return err
			}
			if err := f.withReceipt(ctx, idempotency.Key{
				Org: f.org, RulesetID: rulesetID, RuleID: finalRuleID, Action: idempotency.ActionPostTags,
				ContentHash: transport.ContentHash(tags),
			}, func() error {
				return f.transport.PostTags(ctx, f.org, finalRuleID, tags)
			}); err != nil {
				return err
			}
			f.recordPushItem("tags")
		}
		delete(entry.Rules, finalRuleID)
		return nil

	case ledger.RuleStatusTags:
		if ledger.HasLocalSuffix(ruleID) {
			return fmt.Errorf("rule %s: tags-only status is illegal on a local-only rule", ruleID)
		}
		tags, err := f.mirror.ReadTags(rulesetID, ruleID)
		if err != nil {
			return err
		}
		if err := f.withReceipt(ctx, idempotency.Key{
			Org: f.org, RulesetID: rulesetID, RuleID: ruleID, Action: idempotency.ActionPostTags,
			ContentHash: transport.ContentHash(tags),
		}, func() error {
			return f.transport.PostTags(ctx, f.org, ruleID, tags)
		}); err != nil {
			return err
		}
		delete(entry.Rules, ruleID)
		f.recordPushItem("tags")
		return nil
	}
	return fmt.Errorf("unknown rule status %q", status)
}

// postRulesetWithReceipt performs postRuleset, consulting the
// idempotency log first so a retried push after a crash between a
// successful POST and the ledger rename that records its id does not
// mint a second remote ruleset.
func (f *Facade) postRulesetWithReceipt(ctx context.Context, rulesetID string, data map[string]interface{}) (string, error) {
	if f.receipts == nil {
		return f.transport.PostRuleset(ctx, f.org, data)
	}
	key := idempotency.Key{Org: f.org, RulesetID: rulesetID, Action: idempotency.ActionPostRuleset, ContentHash: transport.ContentHash(data)}
	if id, found, err := f.receipts.Result(ctx, key); err != nil {
		return "", err
	} else if found {
		return id, nil
	}
	newID, err := f.transport.PostRuleset(ctx, f.org, data)
	if err != nil {
		return "", err
	}
	if err := f.receipts.RecordResult(ctx, key, newID); err != nil {
		return "", err
	}
	return newID, nil
}

func (f *Facade) postRuleWithReceipt(ctx context.Context, rulesetID, ruleID string, data map[string]interface{}) (string, error) {
	if f.receipts == nil {
		return f.transport.PostRule(ctx, f.org, rulesetID, data)
	}
	key := idempotency.Key{Org: f.org, RulesetID: rulesetID, RuleID: ruleID, Action: idempotency.ActionPostRule, ContentHash: transport.ContentHash(data)}
	if id, found, err := f.receipts.Result(ctx, key); err != nil {
		return "", err
	} else if found {
		return id, nil
	}
	newID, err := f.transport.PostRule(ctx, f.org, rulesetID, data)
	if err != nil {
		return "", err
	}
	if err := f.receipts.RecordResult(ctx, key, newID); err != nil {
		return "", err
	}
	return newID, nil
}

// withReceipt skips fn if key was already recorded as applied
// (idempotent verbs only: PUT/DELETE/tags POST, none of which need a
// returned id to resume from).
func (f *Facade) withReceipt(ctx context.Context, key idempotency.Key, fn func() error) error {
	if f.receipts == nil {
		return fn()
	}
	done, err := f.receipts.Recorded(ctx, key)
	if err != nil {
		return err
	}
	if done {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	return f.receipts.Record(ctx, key)
}
