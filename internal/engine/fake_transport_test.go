package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

// fakeRule is one rule's remote state.
type fakeRule struct {
	data outbound.JSON
	tags outbound.JSON
}

// fakeOrg is one organization's remote state as fakeTransport sees it.
type fakeOrg struct {
	rulesets map[string]outbound.JSON
	rules    map[string]map[string]*fakeRule // rulesetID -> ruleID -> rule
}

// fakeTransport is an in-memory stand-in for outbound.Transport used
// across the engine tests. It records every call so tests can assert
// on call counts (e.g. that a retried push does not double-POST).
type fakeTransport struct {
	mu sync.Mutex

	orgs   map[string]*fakeOrg
	nextID int

	calls map[string]int

	// failGetRulesets, when set, makes GetRulesets return this error
	// once (then clears itself) to simulate a transient fetch failure.
	failGetRulesets error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		orgs:  make(map[string]*fakeOrg),
		calls: make(map[string]int),
	}
}

func (f *fakeTransport) org(org string) *fakeOrg {
	o, ok := f.orgs[org]
	if !ok {
		o = &fakeOrg{rulesets: make(map[string]outbound.JSON), rules: make(map[string]map[string]*fakeRule)}
		f.orgs[org] = o
	}
	return o
}

// seedRuleset installs a ruleset (with an empty rule set; see seedRule)
// directly into the fake remote state, bypassing Post, for refresh-side
// test setup.
func (f *fakeTransport) seedRuleset(org, id string, data outbound.JSON) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.org(org)
	o.rulesets[id] = data
	if o.rules[id] == nil {
		o.rules[id] = make(map[string]*fakeRule)
	}
}

func (f *fakeTransport) seedRule(org, rulesetID, ruleID string, data, tags outbound.JSON) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.org(org)
	if o.rules[rulesetID] == nil {
		o.rules[rulesetID] = make(map[string]*fakeRule)
	}
	o.rules[rulesetID][ruleID] = &fakeRule{data: data, tags: tags}
}

func (f *fakeTransport) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeTransport) record(name string) {
	f.calls[name]++
}

func withID(data outbound.JSON, id string) outbound.JSON {
	out := make(outbound.JSON, len(data)+1)
	for k, v := range data {
		out[k] = v
	}
	out["id"] = id
	return out
}

func (f *fakeTransport) GetRulesets(ctx context.Context, org string) ([]outbound.JSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetRulesets")
	if f.failGetRulesets != nil {
		err := f.failGetRulesets
		f.failGetRulesets = nil
		return nil, err
	}
	o := f.org(org)
	out := make([]outbound.JSON, 0, len(o.rulesets))
	for id, data := range o.rulesets {
		out = append(out, withID(data, id))
	}
	return out, nil
}

func (f *fakeTransport) GetRuleset(ctx context.Context, org, rulesetID string) (outbound.JSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetRuleset")
	o := f.org(org)
	data, ok := o.rulesets[rulesetID]
	if !ok {
		return nil, errors.New("fake: ruleset not found")
	}
	return withID(data, rulesetID), nil
}

func (f *fakeTransport) GetRulesetRules(ctx context.Context, org, rulesetID string) ([]outbound.JSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetRulesetRules")
	o := f.org(org)
	rules := o.rules[rulesetID]
	out := make([]outbound.JSON, 0, len(rules))
	for id, r := range rules {
		entry := withID(r.data, id)
		entry["rulesetId"] = rulesetID // the platform embeds the back-reference in list entries
		out = append(out, entry)
	}
	return out, nil
}

func (f *fakeTransport) GetRule(ctx context.Context, org, rulesetID, ruleID string) (outbound.JSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetRule")
	o := f.org(org)
	r, ok := o.rules[rulesetID][ruleID]
	if !ok {
		return nil, errors.New("fake: rule not found")
	}
	return withID(r.data, ruleID), nil
}

func (f *fakeTransport) GetRuleTags(ctx context.Context, org, ruleID string) (outbound.JSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("GetRuleTags")
	o := f.org(org)
	for _, rules := range o.rules {
		if r, ok := rules[ruleID]; ok {
			return r.tags, nil
		}
	}
	return outbound.JSON{}, nil
}

func (f *fakeTransport) PostRuleset(ctx context.Context, org string, data outbound.JSON) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PostRuleset")
	f.nextID++
	id := fmt.Sprintf("rs-%d", f.nextID)
	o := f.org(org)
	o.rulesets[id] = data
	o.rules[id] = make(map[string]*fakeRule)
	return id, nil
}

func (f *fakeTransport) PutRuleset(ctx context.Context, org, rulesetID string, data outbound.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PutRuleset")
	o := f.org(org)
	if _, ok := o.rulesets[rulesetID]; !ok {
		return errors.New("fake: put on unknown ruleset")
	}
	o.rulesets[rulesetID] = data
	return nil
}

func (f *fakeTransport) DeleteRuleset(ctx context.Context, org, rulesetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteRuleset")
	o := f.org(org)
	delete(o.rulesets, rulesetID)
	delete(o.rules, rulesetID)
	return nil
}

func (f *fakeTransport) PostRule(ctx context.Context, org, rulesetID string, data outbound.JSON) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PostRule")
	f.nextID++
	id := fmt.Sprintf("rule-%d", f.nextID)
	o := f.org(org)
	if o.rules[rulesetID] == nil {
		o.rules[rulesetID] = make(map[string]*fakeRule)
	}
	o.rules[rulesetID][id] = &fakeRule{data: data, tags: outbound.JSON{}}
	return id, nil
}

func (f *fakeTransport) PutRule(ctx context.Context, org, rulesetID, ruleID string, data outbound.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PutRule")
	o := f.org(org)
	r, ok := o.rules[rulesetID][ruleID]
	if !ok {
		return errors.New("fake: put on unknown rule")
	}
	r.data = data
	return nil
}

func (f *fakeTransport) DeleteRule(ctx context.Context, org, rulesetID, ruleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DeleteRule")
	o := f.org(org)
	if o.rules[rulesetID] != nil {
		delete(o.rules[rulesetID], ruleID)
	}
	return nil
}

func (f *fakeTransport) PostTags(ctx context.Context, org, ruleID string, data outbound.JSON) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("PostTags")
	o := f.org(org)
	for _, rules := range o.rules {
		if r, ok := rules[ruleID]; ok {
			r.tags = data
			return nil
		}
	}
	return errors.New("fake: tags on unknown rule")
}

var _ outbound.Transport = (*fakeTransport)(nil)
