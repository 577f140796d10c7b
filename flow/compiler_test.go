package flow

import "testing"

func TestCompile_EmptySteps(t *testing.T) {
	cg, err := Compile(&WorkflowDocument{Name: "empty"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(cg.Nodes) != 0 {
		t.Fatalf("expected no nodes, got %d", len(cg.Nodes))
	}
}

func TestCompile_DuplicateStepName(t *testing.T) {
	doc := &WorkflowDocument{
		Name: "dup",
		Steps: []StepSpec{
			{Name: "a", Kind: KindCode, OutputKey: "a", Code: &CodeParams{FunctionName: "x"}},
			{Name: "a", Kind: KindCode, OutputKey: "b", Code: &CodeParams{FunctionName: "y"}},
		},
	}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected duplicate step name error")
	}
}

func TestCompile_DuplicateOutputKeyProducer(t *testing.T) {
	doc := &WorkflowDocument{
		Name: "dup-key",
		Steps: []StepSpec{
			{Name: "a", Kind: KindCode, OutputKey: "shared", Code: &CodeParams{FunctionName: "x"}},
			{Name: "b", Kind: KindCode, OutputKey: "shared", Code: &CodeParams{FunctionName: "y"}},
		},
	}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected duplicate output_key producer error")
	}
}

func TestCompile_UnknownDependency(t *testing.T) {
	doc := &WorkflowDocument{
		Name: "missing-dep",
		Steps: []StepSpec{
			{Name: "a", Kind: KindCode, OutputKey: "a", Dependencies: []string{"ghost"}, Code: &CodeParams{FunctionName: "x"}},
		},
	}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected unknown dependency error")
	}
}

func TestCompile_SelfDependency(t *testing.T) {
	doc := &WorkflowDocument{
		Name: "self-dep",
		Steps: []StepSpec{
			{Name: "a", Kind: KindCode, OutputKey: "a", Dependencies: []string{"a"}, Code: &CodeParams{FunctionName: "x"}},
		},
	}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected self-dependency error")
	}
}

func TestCompile_MissingOutputKey(t *testing.T) {
	doc := &WorkflowDocument{
		Name: "no-output-key",
		Steps: []StepSpec{
			{Name: "a", Kind: KindCode, Code: &CodeParams{FunctionName: "x"}},
		},
	}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected missing output_key error")
	}
}

func TestCompile_RouterUnknownTarget(t *testing.T) {
	doc := &WorkflowDocument{
		Name: "bad-router",
		Steps: []StepSpec{
			{Name: "r", Kind: KindConditionalRouter, Router: &RouterParams{
				ConditionKey: "x",
				RoutingMap:   map[string]string{"yes": "nowhere"},
			}},
		},
	}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected unknown router target error")
	}
}

func TestCompile_Cycle(t *testing.T) {
	doc := &WorkflowDocument{
		Name: "cycle",
		Steps: []StepSpec{
			{Name: "a", Kind: KindCode, OutputKey: "a", Dependencies: []string{"b"}, Code: &CodeParams{FunctionName: "x"}},
			{Name: "b", Kind: KindCode, OutputKey: "b", Dependencies: []string{"a"}, Code: &CodeParams{FunctionName: "y"}},
		},
	}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected cycle detection error")
	}
}

func TestCompile_RouterBackReferenceCycle(t *testing.T) {
	// §9 open question (c): a router targeting an earlier step it is
	// structurally downstream of must be rejected as a cycle.
	doc := &WorkflowDocument{
		Name: "router-cycle",
		Steps: []StepSpec{
			{Name: "a", Kind: KindCode, OutputKey: "a", Code: &CodeParams{FunctionName: "x"}},
			{Name: "r", Kind: KindConditionalRouter, Dependencies: []string{"a"}, Router: &RouterParams{
				ConditionKey: "a.v",
				RoutingMap:   map[string]string{"retry": "a"},
			}},
		},
	}
	if _, err := Compile(doc); err == nil {
		t.Fatal("expected router back-reference cycle error")
	}
}

func TestCompile_FanInJoinSynthesis(t *testing.T) {
	doc := &WorkflowDocument{
		Name: "fan-in",
		Steps: []StepSpec{
			{Name: "a", Kind: KindCode, OutputKey: "a", Code: &CodeParams{FunctionName: "x"}},
			{Name: "b", Kind: KindCode, OutputKey: "b", Code: &CodeParams{FunctionName: "y"}},
			{Name: "c", Kind: KindCode, OutputKey: "c", Dependencies: []string{"a", "b"}, Code: &CodeParams{FunctionName: "z"}},
		},
	}
	cg, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	join, ok := cg.Nodes["join_for_c"]
	if !ok {
		t.Fatal("expected synthetic join_for_c node")
	}
	if !join.IsJoin {
		t.Fatal("join_for_c should be marked IsJoin")
	}
	if len(join.Parents) != 2 {
		t.Fatalf("expected 2 join parents, got %d", len(join.Parents))
	}
	if join.JoinGatedStep != "c" {
		t.Fatalf("expected gated step c, got %q", join.JoinGatedStep)
	}
	c := cg.Nodes["c"]
	if c.RouterParent != "join_for_c" {
		t.Fatalf("expected c's RouterParent to be join_for_c, got %q", c.RouterParent)
	}

	// One join per dependent step: a second dependent step sharing both
	// producers gets its own join_for_d rather than reusing join_for_c.
	doc.Steps = append(doc.Steps, StepSpec{
		Name: "d", Kind: KindCode, OutputKey: "d", Dependencies: []string{"a", "b"}, Code: &CodeParams{FunctionName: "w"},
	})
	cg2, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if _, ok := cg2.Nodes["join_for_d"]; !ok {
		t.Fatal("expected a distinct join_for_d for a different gated step")
	}
}

func TestCompile_SingleParentNoJoin(t *testing.T) {
	doc := &WorkflowDocument{
		Name: "linear",
		Steps: []StepSpec{
			{Name: "a", Kind: KindCode, OutputKey: "a", Code: &CodeParams{FunctionName: "x"}},
			{Name: "b", Kind: KindCode, OutputKey: "b", Dependencies: []string{"a"}, Code: &CodeParams{FunctionName: "y"}},
		},
	}
	cg, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	b := cg.Nodes["b"]
	if len(b.Parents) != 1 || b.Parents[0] != "a" {
		t.Fatalf("expected b's sole parent to be a, got %v", b.Parents)
	}
	if b.RouterParent != "" {
		t.Fatalf("expected no RouterParent for a plain single-producer step, got %q", b.RouterParent)
	}
}

func TestCompile_RouterTargetNotWiredFromStart(t *testing.T) {
	doc := &WorkflowDocument{
		Name: "router",
		Steps: []StepSpec{
			{Name: "classify", Kind: KindCode, OutputKey: "classify", Code: &CodeParams{FunctionName: "x"}},
			{Name: "r", Kind: KindConditionalRouter, Dependencies: []string{"classify"}, Router: &RouterParams{
				ConditionKey: "classify.label",
				RoutingMap:   map[string]string{"support": "path_s", "sales": "path_q"},
			}},
			{Name: "path_s", Kind: KindCode, OutputKey: "path_s", Code: &CodeParams{FunctionName: "noop"}},
			{Name: "path_q", Kind: KindCode, OutputKey: "path_q", Code: &CodeParams{FunctionName: "noop"}},
		},
	}
	cg, err := Compile(doc)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	pathS := cg.Nodes["path_s"]
	if pathS.RouterParent != "r" {
		t.Fatalf("expected path_s gated by router r, got %q", pathS.RouterParent)
	}
	if len(pathS.Parents) != 0 {
		t.Fatalf("expected path_s to have no structural parents (reached only via router), got %v", pathS.Parents)
	}
}
