package transport

import outbound "github.com/rulectl/rulectl/internal/port/outbound"

// normalizeRuleset strips server-only fields from a GET ruleset
// response so the result is exactly what a PUT/POST would accept.
func normalizeRuleset(data outbound.JSON, rulesetID string) outbound.JSON {
	out := shallowCopy(data)
	stripServerFields(out, rulesetID)
	return out
}

// normalizeRule strips server-only fields from a GET rule response,
// including the rulesetId back-reference the platform embeds in rule
// payloads (it is implied by the URL, not part of the POSTable shape).
func normalizeRule(data outbound.JSON, ruleID string) outbound.JSON {
	out := shallowCopy(data)
	stripServerFields(out, ruleID)
	delete(out, "rulesetId")
	return out
}

// normalizeTags strips server-only fields from a GET tags response,
// including the errors array the platform reports validation problems
// in (it is diagnostic, not part of the POSTable shape).
func normalizeTags(data outbound.JSON) outbound.JSON {
	out := shallowCopy(data)
	delete(out, "errors")
	delete(out, "createdAt")
	delete(out, "updatedAt")
	return out
}

// stripServerFields removes the identifier (when it duplicates the URL
// segment) and the server-managed timestamps from data, in place.
func stripServerFields(data outbound.JSON, urlSegmentID string) {
	if id, ok := data["id"]; ok {
		if s, ok := id.(string); ok && s == urlSegmentID {
			delete(data, "id")
		}
	}
	delete(data, "createdAt")
	delete(data, "updatedAt")
}

func shallowCopy(data outbound.JSON) outbound.JSON {
	out := make(outbound.JSON, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

// withName returns a shallow copy of data with the "name" field
// set to name. The copy_* mutation verbs pass the postfixed name to
// keep the platform-wide uniqueness-of-name constraint intact.
func withName(data outbound.JSON, name string) outbound.JSON {
	out := shallowCopy(data)
	out["name"] = name
	return out
}

// Name returns the "name" field of a ruleset/rule payload, or "" if
// absent or not a string.
func Name(data outbound.JSON) string {
	if n, ok := data["name"].(string); ok {
		return n
	}
	return ""
}

// WithName exports withName for the engine's copy verbs, which rewrite
// a copied ruleset/rule's name before it is ever POSTed.
func WithName(data outbound.JSON, name string) outbound.JSON {
	return withName(data, name)
}
