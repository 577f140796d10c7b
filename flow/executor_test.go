package flow

import "testing"

// S4 (map-over-list): a mapped code step transforms each element, in order,
// alongside one child record per iteration and one parent record.
func TestScenario_S4_MapOverList(t *testing.T) {
	doc := &WorkflowDocument{
		Name:   "s4",
		Inputs: []InputSpec{{Name: "items", Kind: InputJSON}},
		Steps: []StepSpec{
			{
				Name:         "transform",
				Kind:         KindCode,
				OutputKey:    "transform",
				MapInput:     "items",
				InputMapping: map[string]string{"val": "item"},
				Code:         &CodeParams{FunctionName: "math.Double"},
			},
		},
	}

	_, state := runGraph(t, doc, map[string]any{"items": []any{1, 2, 3}})

	outputs, ok := state.WorkflowData["transform"].([]any)
	if !ok || len(outputs) != 3 {
		t.Fatalf("expected a 3-element output list, got %#v", state.WorkflowData["transform"])
	}
	want := []int{2, 4, 6}
	for i, out := range outputs {
		m, ok := out.(map[string]any)
		if !ok || m["doubled"] != want[i] {
			t.Fatalf("element %d: expected doubled=%d, got %#v", i, want[i], out)
		}
	}

	var childCount, parentCount int
	for _, r := range state.DebugLog {
		if r.StepName != "transform" {
			continue
		}
		if r.IsChild {
			childCount++
		} else {
			parentCount++
		}
	}
	if childCount != 3 {
		t.Fatalf("expected 3 child records, got %d", childCount)
	}
	if parentCount != 1 {
		t.Fatalf("expected exactly 1 parent record, got %d", parentCount)
	}

	seenIndices := map[int]bool{}
	for _, r := range state.DebugLog {
		if r.StepName == "transform" && r.IsChild {
			if r.MapIndex != nil {
				seenIndices[*r.MapIndex] = true
			}
		}
	}
	for i := 0; i < 3; i++ {
		if !seenIndices[i] {
			t.Fatalf("expected a child record for map_index %d", i)
		}
	}

	if state.Failed() {
		t.Fatalf("expected success, got errors %#v", state.ErrorInfo)
	}
}

// Boundary case 12: a mapped step over an empty list writes output_key: []
// and emits no child records.
func TestBoundary_MapOverEmptyList(t *testing.T) {
	doc := &WorkflowDocument{
		Name:   "s4-empty",
		Inputs: []InputSpec{{Name: "items", Kind: InputJSON}},
		Steps: []StepSpec{
			{
				Name:         "transform",
				Kind:         KindCode,
				OutputKey:    "transform",
				MapInput:     "items",
				InputMapping: map[string]string{"val": "item"},
				Code:         &CodeParams{FunctionName: "math.Double"},
			},
		},
	}

	_, state := runGraph(t, doc, map[string]any{"items": []any{}})

	outputs, ok := state.WorkflowData["transform"].([]any)
	if !ok || len(outputs) != 0 {
		t.Fatalf("expected an empty output list, got %#v", state.WorkflowData["transform"])
	}
	for _, r := range state.DebugLog {
		if r.StepName == "transform" && r.IsChild {
			t.Fatal("expected no child records for an empty map input")
		}
	}
}

func TestMapOverList_NonListInputFails(t *testing.T) {
	doc := &WorkflowDocument{
		Name:   "s4-bad-type",
		Inputs: []InputSpec{{Name: "items", Kind: InputJSON}},
		Steps: []StepSpec{
			{
				Name:      "transform",
				Kind:      KindCode,
				OutputKey: "transform",
				MapInput:  "items",
				Code:      &CodeParams{FunctionName: "math.Double"},
			},
		},
	}
	_, state := runGraph(t, doc, map[string]any{"items": "not-a-list"})
	if !state.Failed() {
		t.Fatal("expected an InputResolutionError when map_input does not resolve to a list")
	}
}

func TestSanitizeJSON_ByteBlobBecomesLengthDescriptor(t *testing.T) {
	got := sanitizeJSON(map[string]any{"payload": []byte("hello")})
	m := got.(map[string]any)
	if m["payload"] != "<bytes of length 5>" {
		t.Fatalf("expected length-descriptor string, got %v", m["payload"])
	}
}

func TestSanitizeJSON_NestedStructures(t *testing.T) {
	got := sanitizeJSON([]any{
		map[string]any{"blob": []byte("ab")},
		42,
		"text",
	})
	list := got.([]any)
	inner := list[0].(map[string]any)
	if inner["blob"] != "<bytes of length 2>" {
		t.Fatalf("expected nested byte blob sanitized, got %v", inner["blob"])
	}
	if list[1] != 42 || list[2] != "text" {
		t.Fatalf("expected scalars to pass through unchanged, got %#v", list)
	}
}

// Property: every record's duration is non-negative, and exactly one
// non-child record exists per executed step.
func TestProperty_DebugRecordShapeAndDuration(t *testing.T) {
	doc := &WorkflowDocument{
		Name:  "props",
		Steps: []StepSpec{constCodeStep("a", "a", "test.Noop", nil, nil)},
	}
	_, state := runGraph(t, doc, nil)

	var nonChild int
	for _, r := range state.DebugLog {
		if r.DurationMs < 0 {
			t.Fatalf("expected non-negative duration, got %d", r.DurationMs)
		}
		if r.StepName == "a" && !r.IsChild {
			nonChild++
		}
	}
	if nonChild != 1 {
		t.Fatalf("expected exactly one non-child record for step a, got %d", nonChild)
	}
}
