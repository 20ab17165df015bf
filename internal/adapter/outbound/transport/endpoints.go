package transport

import (
	"context"
	"fmt"

	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

// GetRulesets returns the organization's rulesets. Unlike the
// per-resource GET endpoints, list entries are NOT POSTable-normalized
// here: the list carries no URL segment to compare "id" against, and
// callers need each entry's "id" to know which ruleset it is. Callers
// that persist a list entry as ruleset.json must normalize it
// themselves (see engine.stripRulesetFields).
func (c *Client) GetRulesets(ctx context.Context, org string) ([]outbound.JSON, error) {
	resp, err := c.do(ctx, "GET", "/v2/rulesets", nil)
	if err != nil {
		return nil, err
	}
	return decodeList(resp, "rulesets")
}

func (c *Client) GetRuleset(ctx context.Context, org, rulesetID string) (outbound.JSON, error) {
	resp, err := c.do(ctx, "GET", fmt.Sprintf("/v2/rulesets/%s", rulesetID), nil)
	if err != nil {
		return nil, err
	}
	return normalizeRuleset(resp, rulesetID), nil
}

// GetRulesetRules returns the ruleset's rules. Like GetRulesets, list
// entries keep their "id" field — callers need it to know which rule is
// which — so anyone persisting an entry as rule.json must normalize it
// first (see engine.stripRuleFields).
func (c *Client) GetRulesetRules(ctx context.Context, org, rulesetID string) ([]outbound.JSON, error) {
	resp, err := c.do(ctx, "GET", fmt.Sprintf("/v2/rulesets/%s/rules", rulesetID), nil)
	if err != nil {
		return nil, err
	}
	return decodeList(resp, "rules")
}

func (c *Client) GetRule(ctx context.Context, org, rulesetID, ruleID string) (outbound.JSON, error) {
	resp, err := c.do(ctx, "GET", fmt.Sprintf("/v2/rulesets/%s/rules/%s", rulesetID, ruleID), nil)
	if err != nil {
		return nil, err
	}
	return normalizeRule(resp, ruleID), nil
}

func (c *Client) GetRuleTags(ctx context.Context, org, ruleID string) (outbound.JSON, error) {
	resp, err := c.do(ctx, "GET", fmt.Sprintf("/v2/rules/%s/tags", ruleID), nil)
	if err != nil {
		return nil, err
	}
	return normalizeTags(resp), nil
}

func (c *Client) PostRuleset(ctx context.Context, org string, data outbound.JSON) (string, error) {
	resp, err := c.do(ctx, "POST", "/v2/rulesets", data)
	if err != nil {
		return "", err
	}
	return extractID(resp)
}

func (c *Client) PutRuleset(ctx context.Context, org, rulesetID string, data outbound.JSON) error {
	_, err := c.do(ctx, "PUT", fmt.Sprintf("/v2/rulesets/%s", rulesetID), data)
	return err
}

func (c *Client) DeleteRuleset(ctx context.Context, org, rulesetID string) error {
	_, err := c.do(ctx, "DELETE", fmt.Sprintf("/v2/rulesets/%s", rulesetID), nil)
	return err
}

func (c *Client) PostRule(ctx context.Context, org, rulesetID string, data outbound.JSON) (string, error) {
	resp, err := c.do(ctx, "POST", fmt.Sprintf("/v2/rulesets/%s/rules", rulesetID), data)
	if err != nil {
		return "", err
	}
	return extractID(resp)
}

func (c *Client) PutRule(ctx context.Context, org, rulesetID, ruleID string, data outbound.JSON) error {
	_, err := c.do(ctx, "PUT", fmt.Sprintf("/v2/rulesets/%s/rules/%s", rulesetID, ruleID), data)
	return err
}

func (c *Client) DeleteRule(ctx context.Context, org, rulesetID, ruleID string) error {
	_, err := c.do(ctx, "DELETE", fmt.Sprintf("/v2/rulesets/%s/rules/%s", rulesetID, ruleID), nil)
	return err
}

func (c *Client) PostTags(ctx context.Context, org, ruleID string, data outbound.JSON) error {
	_, err := c.do(ctx, "POST", fmt.Sprintf("/v2/rules/%s/tags", ruleID), data)
	return err
}

// decodeList extracts an array response. The remote always returns a
// bare JSON array, which do() smuggles through under bareArrayKey; the
// envelopeKey fallback exists for the rare paginated platform that
// wraps the array in an object instead.
func decodeList(resp outbound.JSON, envelopeKey string) ([]outbound.JSON, error) {
	if resp == nil {
		return nil, nil
	}
	if raw, ok := resp[bareArrayKey]; ok {
		return toJSONList(raw)
	}
	if raw, ok := resp[envelopeKey]; ok {
		return toJSONList(raw)
	}
	return nil, fmt.Errorf("transport: expected array response")
}

func toJSONList(raw interface{}) ([]outbound.JSON, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("transport: expected array, got %T", raw)
	}
	out := make([]outbound.JSON, 0, len(items))
	for _, item := range items {
		m, ok := item.(outbound.JSON)
		if !ok {
			return nil, fmt.Errorf("transport: expected object in array, got %T", item)
		}
		out = append(out, m)
	}
	return out, nil
}

func extractID(resp outbound.JSON) (string, error) {
	id, ok := resp["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("transport: response missing string \"id\" field")
	}
	return id, nil
}
