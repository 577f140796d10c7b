package flow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResolveRef resolves a single reference string against ctx, the merged
// view of workflow_data plus any mapped "item"/"map_index" overlay.
//
// Rules, evaluated top-down (§4.B):
//  1. The literal "item" returns ctx["item"], set only inside a mapped
//     iteration's context overlay.
//  2. A single-quoted literal 'text' returns the inner string verbatim.
//  3. A dotted form a.b.c left-folds: resolve "a", then if the result is
//     a map, recurse with "b.c"; otherwise the result is null.
//  4. A bare key k returns ctx[k], or null if absent.
func ResolveRef(ctx map[string]any, ref string) any {
	if ref == "item" {
		return ctx["item"]
	}
	if len(ref) >= 2 && strings.HasPrefix(ref, "'") && strings.HasSuffix(ref, "'") {
		return ref[1 : len(ref)-1]
	}

	return resolveDotted(ctx, ref)
}

// resolveDotted implements ResolveRef's dotted-form and bare-key rules: it
// looks up the head segment of path in m and, while segments remain and
// the value is a map, recurses on the rest.
func resolveDotted(m map[string]any, path string) any {
	head, rest, hasRest := strings.Cut(path, ".")
	val, ok := m[head]
	if !ok {
		return nil
	}
	if !hasRest {
		return val
	}
	next, ok := asMap(val)
	if !ok {
		return nil
	}
	return resolveDotted(next, rest)
}

// asMap normalizes map[string]any and map[any]any shapes (the latter
// arises from YAML parsing) into map[string]any.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprintf("%v", k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// refToken is a single <ref> occurrence located inside a template string,
// along with the byte range it occupies.
type refToken struct {
	ref        string
	start, end int
}

// findRefs scans s for <...> tokens, single-pass, left to right. Nested
// angle brackets are not supported; the first matching '>' after a '<'
// closes the token.
func findRefs(s string) []refToken {
	var toks []refToken
	for i := 0; i < len(s); i++ {
		if s[i] != '<' {
			continue
		}
		end := strings.IndexByte(s[i+1:], '>')
		if end < 0 {
			break
		}
		end += i + 1
		toks = append(toks, refToken{ref: s[i+1 : end], start: i, end: end + 1})
		i = end
	}
	return toks
}

// ResolvePlaceholders recursively walks a JSON-like tree (maps, slices,
// strings, and scalars) and substitutes every <ref> token found in a
// string against ctx.
//
// If a string cell equals exactly one <ref> token, the entire cell is
// replaced by the resolved value's native type (so a typed object or
// number can flow through unchanged). Otherwise every <ref> occurrence in
// the string is replaced by its stringified resolution, left to right,
// single pass: a resolved value that itself contains "<...>" text is not
// re-expanded (§9 open question b).
func ResolvePlaceholders(tree any, ctx map[string]any) any {
	switch v := tree.(type) {
	case string:
		toks := findRefs(v)
		if len(toks) == 0 {
			return v
		}
		if len(toks) == 1 && toks[0].start == 0 && toks[0].end == len(v) {
			return ResolveRef(ctx, toks[0].ref)
		}
		var b strings.Builder
		last := 0
		for _, t := range toks {
			b.WriteString(v[last:t.start])
			b.WriteString(stringify(ResolveRef(ctx, t.ref)))
			last = t.end
		}
		b.WriteString(v[last:])
		return b.String()
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = ResolvePlaceholders(val, ctx)
		}
		return out
	case map[any]any:
		m, _ := asMap(v)
		return ResolvePlaceholders(m, ctx)
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = ResolvePlaceholders(val, ctx)
		}
		return out
	default:
		return v
	}
}

// stringify renders a resolved value for string interpolation: objects
// and arrays become compact JSON, scalars render with their natural
// textual form, and null becomes the empty string.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", t)
	}
}
