package engine

import (
	"context"
	"fmt"

	"github.com/rulectl/rulectl/internal/adapter/outbound/mirror"
	"github.com/rulectl/rulectl/internal/adapter/outbound/transport"
	"github.com/rulectl/rulectl/internal/domain/ledger"
	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

const defaultCopyPostfix = " - COPY"

// maybePush calls Push when the facade is in eager mode; in lazy mode
// (the default) it is a no-op and the caller is responsible for an
// explicit Push.
func (f *Facade) maybePush(ctx context.Context) error {
	if f.lazy {
		return nil
	}
	return f.Push(ctx)
}

// CreateRuleset mints a local id, writes ruleset.json, and records the
// creation in the ledger. Returns the minted id.
func (f *Facade) CreateRuleset(ctx context.Context, data outbound.JSON) (string, error) {
	id, err := f.createRulesetNoPush(data)
	if err != nil {
		return "", err
	}
	return id, f.maybePush(ctx)
}

func (f *Facade) createRulesetNoPush(data outbound.JSON) (string, error) {
	id := f.mirror.MintLocalRulesetID()
	if err := f.mirror.WriteRuleset(id, data); err != nil {
		return "", err
	}
	if err := f.registry.mutateLedger(func(doc *ledger.Document) error {
		return doc.AddRuleset(f.org, id, ledger.RulesetModifiedTrue)
	}); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateRuleset requires ruleset r to already exist locally, overwrites
// ruleset.json, and marks it modified in the ledger.
func (f *Facade) UpdateRuleset(ctx context.Context, r string, data outbound.JSON) error {
	if _, err := f.mirror.LocateRuleset(r); err != nil {
		return wrapNotFound(err)
	}
	if err := f.mirror.WriteRuleset(r, data); err != nil {
		return err
	}
	if err := f.registry.mutateLedger(func(doc *ledger.Document) error {
		return doc.AddRuleset(f.org, r, ledger.RulesetModifiedTrue)
	}); err != nil {
		return err
	}
	return f.maybePush(ctx)
}

// DeleteRuleset requires ruleset r to exist locally, removes its
// directory, and records a recursive deletion in the ledger.
func (f *Facade) DeleteRuleset(ctx context.Context, r string) error {
	if _, err := f.mirror.LocateRuleset(r); err != nil {
		return wrapNotFound(err)
	}
	if err := f.mirror.RemoveRuleset(r); err != nil {
		return err
	}
	if err := f.registry.mutateLedger(func(doc *ledger.Document) error {
		return doc.DeleteRuleset(f.org, r, true)
	}); err != nil {
		return err
	}
	return f.maybePush(ctx)
}

// CreateRule requires ruleset r to exist locally, mints a local rule
// id, writes rule.json and tags.json (tags defaults to {}), and
// records a "both" dirty status. Returns the minted id.
func (f *Facade) CreateRule(ctx context.Context, r string, rule, tags outbound.JSON) (string, error) {
	id, err := f.createRuleNoPush(r, rule, tags)
	if err != nil {
		return "", err
	}
	return id, f.maybePush(ctx)
}

func (f *Facade) createRuleNoPush(r string, rule, tags outbound.JSON) (string, error) {
	if _, err := f.mirror.LocateRuleset(r); err != nil {
		return "", wrapNotFound(err)
	}
	id := f.mirror.MintLocalRuleID(r)
	if err := f.mirror.WriteRule(r, id, rule, tags); err != nil {
		return "", err
	}
	if err := f.registry.mutateLedger(func(doc *ledger.Document) error {
		return doc.AddRule(f.org, r, id, ledger.RuleStatusBoth)
	}); err != nil {
		return "", err
	}
	return id, nil
}

// UpdateRule locates rule x by id, overwrites rule.json only, and
// marks its rule-side status dirty.
func (f *Facade) UpdateRule(ctx context.Context, x string, rule outbound.JSON) error {
	_, rulesetID, err := f.mirror.LocateRule(x)
	if err != nil {
		return wrapNotFound(err)
	}
	if err := f.mirror.WriteRuleFile(rulesetID, x, rule); err != nil {
		return err
	}
	if err := f.registry.mutateLedger(func(doc *ledger.Document) error {
		return doc.AddRule(f.org, rulesetID, x, ledger.RuleStatusRule)
	}); err != nil {
		return err
	}
	return f.maybePush(ctx)
}

// CreateTags locates rule x by id, overwrites tags.json only, and
// marks its tags-side status dirty.
func (f *Facade) CreateTags(ctx context.Context, x string, tags outbound.JSON) error {
	_, rulesetID, err := f.mirror.LocateRule(x)
	if err != nil {
		return wrapNotFound(err)
	}
	if err := f.mirror.WriteTags(rulesetID, x, tags); err != nil {
		return err
	}
	if err := f.registry.mutateLedger(func(doc *ledger.Document) error {
		return doc.AddRule(f.org, rulesetID, x, ledger.RuleStatusTags)
	}); err != nil {
		return err
	}
	return f.maybePush(ctx)
}

// DeleteRule locates rule x by id, removes its directory, and records
// its deletion in the ledger.
func (f *Facade) DeleteRule(ctx context.Context, x string) error {
	_, rulesetID, err := f.mirror.LocateRule(x)
	if err != nil {
		return wrapNotFound(err)
	}
	if err := f.mirror.RemoveRule(rulesetID, x); err != nil {
		return err
	}
	if err := f.registry.mutateLedger(func(doc *ledger.Document) error {
		return doc.DeleteRule(f.org, x)
	}); err != nil {
		return err
	}
	return f.maybePush(ctx)
}

// CopyRule copies rule x into dstRuleset within the same organization.
// The copy's name is suffixed with postfix (default " - COPY") to keep
// it distinct under the platform's name-uniqueness constraint.
func (f *Facade) CopyRule(ctx context.Context, x, dstRuleset string, postfix *string) (string, error) {
	rule, tags, err := f.readRuleForCopy(x, postfix)
	if err != nil {
		return "", err
	}
	return f.CreateRule(ctx, dstRuleset, rule, tags)
}

// CopyRuleOut copies rule x into dstRuleset on a different organization
// dstOrg, materializing dstOrg's facade (and refreshing it if its
// mirror directory is empty) first.
func (f *Facade) CopyRuleOut(ctx context.Context, x, dstRuleset, dstOrg string, postfix *string) (string, error) {
	rule, tags, err := f.readRuleForCopy(x, postfix)
	if err != nil {
		return "", err
	}
	dst, err := f.registry.Get(dstOrg)
	if err != nil {
		return "", err
	}
	if err := dst.ensureRefreshed(ctx); err != nil {
		return "", err
	}
	return dst.CreateRule(ctx, dstRuleset, rule, tags)
}

func (f *Facade) readRuleForCopy(x string, postfix *string) (rule, tags outbound.JSON, err error) {
	_, rulesetID, err := f.mirror.LocateRule(x)
	if err != nil {
		return nil, nil, wrapNotFound(err)
	}
	rule, err = f.mirror.ReadRule(rulesetID, x)
	if err != nil {
		return nil, nil, err
	}
	tags, err = f.mirror.ReadTags(rulesetID, x)
	if err != nil {
		return nil, nil, err
	}
	rule = applyNamePostfix(rule, postfix)
	return rule, tags, nil
}

// CopyRuleset deep-copies ruleset r: a new ruleset is created from
// r's ruleset.json (renamed), then every child rule (and its tags, if
// present) is copied onto the new ruleset. Returns the new ruleset id.
func (f *Facade) CopyRuleset(ctx context.Context, r string, postfix *string) (string, error) {
	newID, err := f.copyRulesetNoPush(f, r, postfix)
	if err != nil {
		return "", err
	}
	return newID, f.maybePush(ctx)
}

// CopyRulesetOut deep-copies ruleset r onto a different organization
// dstOrg, materializing its facade (refreshing if empty) first.
func (f *Facade) CopyRulesetOut(ctx context.Context, r, dstOrg string, postfix *string) (string, error) {
	dst, err := f.registry.Get(dstOrg)
	if err != nil {
		return "", err
	}
	if err := dst.ensureRefreshed(ctx); err != nil {
		return "", err
	}
	newID, err := f.copyRulesetNoPush(dst, r, postfix)
	if err != nil {
		return "", err
	}
	return newID, dst.maybePush(ctx)
}

// copyRulesetNoPush implements the shared body of CopyRuleset and
// CopyRulesetOut: src (always f) supplies the source ruleset and its
// rules; dst (f for an intra-org copy, another facade for cross-org)
// receives the new ruleset and rules. No push is issued here; the
// caller issues exactly one at the end.
func (f *Facade) copyRulesetNoPush(dst *Facade, r string, postfix *string) (string, error) {
	rulesetData, err := f.mirror.ReadRuleset(r)
	if err != nil {
		return "", wrapNotFound(err)
	}
	rulesetData = applyNamePostfix(rulesetData, postfix)

	newID, err := dst.createRulesetNoPush(rulesetData)
	if err != nil {
		return "", err
	}

	ruleIDs, err := f.mirror.IterRules(r)
	if err != nil {
		return "", err
	}
	for _, ruleID := range ruleIDs {
		rule, err := f.mirror.ReadRule(r, ruleID)
		if err != nil {
			return "", err
		}
		tags, err := f.mirror.ReadTags(r, ruleID)
		if err != nil {
			return "", err
		}
		if _, err := dst.createRuleNoPush(newID, rule, tags); err != nil {
			return "", err
		}
	}
	return newID, nil
}

// EnsureRefreshed triggers an initial Refresh if this facade's mirror
// directory has no rulesets yet, so an organization referenced for the
// first time starts from its current remote state. Exported so the
// CLI's workspace verb can request the same behavior explicitly.
func (f *Facade) EnsureRefreshed(ctx context.Context) error {
	return f.ensureRefreshed(ctx)
}

func (f *Facade) ensureRefreshed(ctx context.Context) error {
	existing, err := f.mirror.ListRulesets()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return f.Refresh(ctx)
}

// applyNamePostfix appends the copy postfix (or a caller-supplied one)
// to data's "name" field, via transport.Name/transport.WithName rather
// than rewriting the field itself.
func applyNamePostfix(data outbound.JSON, postfix *string) outbound.JSON {
	p := defaultCopyPostfix
	if postfix != nil {
		p = *postfix
	}
	name := transport.Name(data)
	if name == "" {
		return data
	}
	return transport.WithName(data, name+p)
}

func wrapNotFound(err error) error {
	if err == mirror.ErrNotFound {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
