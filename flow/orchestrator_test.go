package flow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

const innerWorkflowYAML = `
name: inner
steps:
  - name: step_a
    kind: code
    output_key: step_a
    code:
      function_name: test.NoopA
  - name: step_b
    kind: code
    output_key: step_b
    dependencies: [step_a]
    code:
      function_name: test.NoopB
`

// S5 (sub-workflow): an outer workflow step invokes a sub-workflow; the
// parent's debug_log carries a contiguous block of the sub-run's own
// records, and the observer receives sub_workflow_event entries tagged
// with the enclosing step and sub-workflow name.
func TestScenario_S5_SubWorkflow(t *testing.T) {
	root := t.TempDir()
	innerDir := filepath.Join(root, "inner")
	if err := os.MkdirAll(innerDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(innerDir, "workflow.yaml"), []byte(innerWorkflowYAML), 0o644); err != nil {
		t.Fatalf("write workflow.yaml: %v", err)
	}

	outerDoc := &WorkflowDocument{
		Name: "outer-doc",
		Steps: []StepSpec{
			{
				Name:      "outer",
				Kind:      KindWorkflow,
				OutputKey: "outer",
				Workflow: &WorkflowParams{
					WorkflowName:  "inner",
					OutputMapping: map[string]string{"step_b": "outer_result"},
				},
			},
		},
	}
	cg, err := Compile(outerDoc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	orch := NewOrchestrator(root)
	ch, err := orch.RunCompiled(context.Background(), cg, nil, WithRegistry(newTestRegistry()))
	if err != nil {
		t.Fatalf("RunCompiled: %v", err)
	}
	events := drainEvents(ch)
	state := finalState(t, events)

	if state.Failed() {
		t.Fatalf("expected the sub-workflow run to succeed, got %#v", state.ErrorInfo)
	}

	// The outer step's own record must follow the entire nested block from
	// the sub-run (runExecutor appends a node's own record after its extra
	// records).
	var sawStepA, sawStepB, sawOuterAfterBoth bool
	for _, r := range state.DebugLog {
		switch r.StepName {
		case "step_a":
			sawStepA = true
		case "step_b":
			sawStepB = true
		case "outer":
			if sawStepA && sawStepB {
				sawOuterAfterBoth = true
			}
		}
	}
	if !sawStepA || !sawStepB {
		t.Fatalf("expected inner's records to appear in outer's debug_log, got %#v", state.DebugLog)
	}
	if !sawOuterAfterBoth {
		t.Fatal("expected outer's own record to follow the inner block")
	}

	var sawSubWorkflowEvent bool
	for _, ev := range events {
		if ev.Type != EventSubWorkflowEvent {
			continue
		}
		data := ev.Data.(SubWorkflowEventData)
		if data.ParentStep == "outer" && data.SubWorkflow == "inner" {
			sawSubWorkflowEvent = true
		}
	}
	if !sawSubWorkflowEvent {
		t.Fatal("expected at least one sub_workflow_event tagged parent_step=outer, sub_workflow=inner")
	}

	outer, ok := state.WorkflowData["outer"].(map[string]any)
	if !ok {
		t.Fatalf("expected outer's output_key to carry the projected map, got %#v", state.WorkflowData["outer"])
	}
	if _, ok := outer["outer_result"]; !ok {
		t.Fatalf("expected output_mapping to project step_b under outer_result, got %#v", outer)
	}
	if _, ok := state.WorkflowData["outer_result"]; !ok {
		t.Fatal("expected output_mapping to also flatten outer_result to the top level")
	}
}

func TestScenario_S5_SubWorkflowFailurePropagates(t *testing.T) {
	root := t.TempDir()
	innerDir := filepath.Join(root, "inner")
	if err := os.MkdirAll(innerDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	failingInner := `
name: inner
steps:
  - name: boom
    kind: code
    output_key: boom
    code:
      function_name: test.AlwaysFails
`
	if err := os.WriteFile(filepath.Join(innerDir, "workflow.yaml"), []byte(failingInner), 0o644); err != nil {
		t.Fatalf("write workflow.yaml: %v", err)
	}

	outerDoc := &WorkflowDocument{
		Name: "outer-doc",
		Steps: []StepSpec{
			{
				Name:      "outer",
				Kind:      KindWorkflow,
				OutputKey: "outer",
				Workflow:  &WorkflowParams{WorkflowName: "inner"},
			},
		},
	}
	cg, err := Compile(outerDoc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	orch := NewOrchestrator(root)
	ch, err := orch.RunCompiled(context.Background(), cg, nil, WithRegistry(newTestRegistry()))
	if err != nil {
		t.Fatalf("RunCompiled: %v", err)
	}
	events := drainEvents(ch)
	state := finalState(t, events)

	if !state.Failed() {
		t.Fatal("expected the outer node to fail when its sub-workflow fails")
	}
}

func TestSeedInputs_MissingRequiredInput(t *testing.T) {
	doc := &WorkflowDocument{
		Name:   "needs-input",
		Inputs: []InputSpec{{Name: "text", Kind: InputText}},
	}
	if _, err := seedInputs(doc, map[string]any{}); err == nil {
		t.Fatal("expected an error when a required input with no default is missing")
	}
}

func TestSeedInputs_DefaultFallbackAndPassthrough(t *testing.T) {
	doc := &WorkflowDocument{
		Name:   "defaults",
		Inputs: []InputSpec{{Name: "greeting", Kind: InputText, Default: "hi"}},
	}
	out, err := seedInputs(doc, map[string]any{"extra": 1})
	if err != nil {
		t.Fatalf("seedInputs: %v", err)
	}
	if out["greeting"] != "hi" {
		t.Fatalf("expected default fallback, got %v", out["greeting"])
	}
	if out["extra"] != 1 {
		t.Fatal("expected undeclared caller-supplied keys to pass through")
	}
}
