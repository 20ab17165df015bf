package transport

import (
	"encoding/json"
	"sort"

	"github.com/cespare/xxhash/v2"

	outbound "github.com/rulectl/rulectl/internal/port/outbound"
)

// ContentHash returns a stable digest of a normalized JSON payload,
// used by Push to key idempotency receipts (refresh does not use it and
// rewrites every fetched file). Map keys are
// sorted before hashing so semantically identical payloads hash
// identically regardless of Go map iteration order.
func ContentHash(data outbound.JSON) uint64 {
	h := xxhash.New()
	writeCanonical(h, data)
	return h.Sum64()
}

func writeCanonical(h *xxhash.Digest, v interface{}) {
	switch val := v.(type) {
	case outbound.JSON:
		// JSON is an alias for map[string]interface{}, so this case also
		// matches every nested object json.Unmarshal produces.
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = h.WriteString(k)
			_, _ = h.WriteString("=")
			writeCanonical(h, val[k])
			_, _ = h.WriteString(";")
		}
	case []interface{}:
		for _, item := range val {
			writeCanonical(h, item)
			_, _ = h.WriteString(",")
		}
	default:
		b, _ := json.Marshal(val)
		_, _ = h.Write(b)
	}
}
