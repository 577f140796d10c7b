package flow

import "fmt"

// sanitizeJSON recursively walks v and replaces anything that cannot
// survive a JSON round-trip with a JSON-safe substitute, as required of
// every DebugRecord's Inputs and Outputs (§3, §4.D step 6): byte blobs
// become a length-descriptor string, everything else passes through
// unchanged or gets stringified as a last resort.
func sanitizeJSON(v any) any {
	switch t := v.(type) {
	case []byte:
		return fmt.Sprintf("<bytes of length %d>", len(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = sanitizeJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = sanitizeJSON(val)
		}
		return out
	case nil, string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t
	default:
		// Best effort: anything else (custom structs returned by a code
		// handler, for instance) is rendered to its string form rather
		// than risk an unmarshalable cell in the debug log.
		return fmt.Sprintf("%v", t)
	}
}

// sanitizeInputs applies sanitizeJSON across a resolved-inputs map,
// returning a fresh map safe to embed in a DebugRecord.
func sanitizeInputs(inputs map[string]any) map[string]any {
	out, ok := sanitizeJSON(inputs).(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return out
}
