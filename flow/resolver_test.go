package flow

import (
	"reflect"
	"testing"
)

func TestResolveRef_ItemLiteral(t *testing.T) {
	ctx := map[string]any{"item": 42}
	if got := ResolveRef(ctx, "item"); got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestResolveRef_QuotedLiteral(t *testing.T) {
	if got := ResolveRef(map[string]any{}, "'hello'"); got != "hello" {
		t.Fatalf("expected literal hello, got %v", got)
	}
}

func TestResolveRef_DottedPath(t *testing.T) {
	ctx := map[string]any{
		"stats": map[string]any{"word_count": 2, "nested": map[string]any{"v": "deep"}},
	}
	if got := ResolveRef(ctx, "stats.word_count"); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := ResolveRef(ctx, "stats.nested.v"); got != "deep" {
		t.Fatalf("expected deep, got %v", got)
	}
}

func TestResolveRef_DottedPathOnNonMap(t *testing.T) {
	ctx := map[string]any{"stats": 5}
	if got := ResolveRef(ctx, "stats.word_count"); got != nil {
		t.Fatalf("expected nil resolving through a scalar, got %v", got)
	}
}

func TestResolveRef_MissingKey(t *testing.T) {
	if got := ResolveRef(map[string]any{}, "ghost"); got != nil {
		t.Fatalf("expected nil for missing bare key, got %v", got)
	}
	if got := ResolveRef(map[string]any{"a": map[string]any{}}, "a.ghost"); got != nil {
		t.Fatalf("expected nil for missing dotted key, got %v", got)
	}
}

func TestResolveRef_YAMLMapAnyAny(t *testing.T) {
	ctx := map[string]any{"stats": map[any]any{"word_count": 2}}
	if got := ResolveRef(ctx, "stats.word_count"); got != 2 {
		t.Fatalf("expected 2 resolving through a map[any]any, got %v", got)
	}
}

func TestResolvePlaceholders_WholeCellReplace(t *testing.T) {
	ctx := map[string]any{"count": 7}
	got := ResolvePlaceholders("<count>", ctx)
	if got != 7 {
		t.Fatalf("expected typed value 7, got %v (%T)", got, got)
	}
}

func TestResolvePlaceholders_StringInterpolation(t *testing.T) {
	ctx := map[string]any{"name": "ada", "count": 3}
	got := ResolvePlaceholders("hello <name>, you have <count> items", ctx)
	if got != "hello ada, you have 3 items" {
		t.Fatalf("unexpected interpolation result: %v", got)
	}
}

func TestResolvePlaceholders_SinglePassNoReExpansion(t *testing.T) {
	// §9 open question (b): a resolved value containing <...> text is not
	// re-expanded.
	ctx := map[string]any{"inner": "<count>", "count": 99}
	got := ResolvePlaceholders("value: <inner>", ctx)
	if got != "value: <count>" {
		t.Fatalf("expected single-pass substitution to leave <count> literal, got %v", got)
	}
}

func TestResolvePlaceholders_RecursesTreeShape(t *testing.T) {
	ctx := map[string]any{"a": 1, "b": 2}
	tree := map[string]any{
		"x": []any{"<a>", "<b>"},
		"y": map[string]any{"z": "<a>"},
	}
	got := ResolvePlaceholders(tree, ctx)
	want := map[string]any{
		"x": []any{1, 2},
		"y": map[string]any{"z": 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}
