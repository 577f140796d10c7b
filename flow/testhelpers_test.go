package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowforge/flowgraph/flow/registry"
	"github.com/flowforge/flowgraph/flow/store"
)

// drainEvents reads ch to exhaustion, returning every event in arrival
// order. Every test in this package runs an already-complete, unbounded
// graph, so draining never blocks.
func drainEvents(ch <-chan StreamEvent) []StreamEvent {
	var out []StreamEvent
	for ev := range ch {
		out = append(out, ev)
	}
	return out
}

func finalState(t interface {
	Fatal(args ...any)
}, events []StreamEvent) GraphState {
	if len(events) == 0 {
		t.Fatal("expected at least one event")
	}
	last := events[len(events)-1]
	if last.Type != EventResult {
		t.Fatal("expected the last event to be a result event")
	}
	return last.Data.(ResultData).State
}

func lifecycleStatuses(events []StreamEvent, stepName string) []Status {
	var out []Status
	for _, ev := range events {
		if ev.Type != EventLifecycleUpdate {
			continue
		}
		ld := ev.Data.(LifecycleData)
		if ld.StepName == stepName {
			out = append(out, ld.Status)
		}
	}
	return out
}

// indexOfLifecycle returns the position of the first lifecycle_update for
// stepName carrying status, or -1.
func indexOfLifecycle(events []StreamEvent, stepName string, status Status) int {
	for i, ev := range events {
		if ev.Type != EventLifecycleUpdate {
			continue
		}
		ld := ev.Data.(LifecycleData)
		if ld.StepName == stepName && ld.Status == status {
			return i
		}
	}
	return -1
}

// newTestRegistry registers a small fixed set of custom-code handlers
// exercised across this package's scenario tests: word/char counting,
// a length classifier, a two-input adder, a no-op, a value doubler, and a
// handler that always fails.
func newTestRegistry() *registry.Registry {
	reg := registry.New()

	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(reg.Register(registry.Step{
		Name: "text_analysis.GetTextStats",
		Execute: func(ctx context.Context, input map[string]any, handle store.Handle) (any, error) {
			text, _ := input["text"].(string)
			words := strings.Fields(text)
			return map[string]any{
				"word_count": len(words),
				"char_count": len(text),
			}, nil
		},
	}))

	must(reg.Register(registry.Step{
		Name: "text_analysis.LengthClassifier",
		Execute: func(ctx context.Context, input map[string]any, handle store.Handle) (any, error) {
			wc, _ := input["wc"].(int)
			bucket := "long"
			if wc <= 5 {
				bucket = "short"
			}
			return map[string]any{"bucket": bucket}, nil
		},
	}))

	must(reg.Register(registry.Step{
		Name: "math.Adder",
		Execute: func(ctx context.Context, input map[string]any, handle store.Handle) (any, error) {
			va, _ := input["va"].(int)
			vb, _ := input["vb"].(int)
			return map[string]any{"sum": va + vb}, nil
		},
	}))

	must(reg.Register(registry.Step{
		Name: "test.Noop",
		Execute: func(ctx context.Context, input map[string]any, handle store.Handle) (any, error) {
			return map[string]any{"ran": true}, nil
		},
	}))

	must(reg.Register(registry.Step{
		Name: "math.Double",
		Execute: func(ctx context.Context, input map[string]any, handle store.Handle) (any, error) {
			v, _ := input["val"].(int)
			return map[string]any{"doubled": v * 2}, nil
		},
	}))

	must(reg.Register(registry.Step{
		Name: "test.AlwaysFails",
		Execute: func(ctx context.Context, input map[string]any, handle store.Handle) (any, error) {
			return nil, fmt.Errorf("simulated handler failure")
		},
	}))

	must(reg.Register(registry.Step{
		Name: "test.NoopA",
		Execute: func(ctx context.Context, input map[string]any, handle store.Handle) (any, error) {
			return map[string]any{"a_done": true}, nil
		},
	}))

	must(reg.Register(registry.Step{
		Name: "test.NoopB",
		Execute: func(ctx context.Context, input map[string]any, handle store.Handle) (any, error) {
			return map[string]any{"b_done": true}, nil
		},
	}))

	must(reg.Register(registry.Step{
		Name: "test.StorageRoundTrip",
		Execute: func(ctx context.Context, input map[string]any, handle store.Handle) (any, error) {
			if handle == nil {
				return nil, fmt.Errorf("no storage handle installed")
			}
			key, _ := input["key"].(string)
			value, _ := input["value"].(string)
			if err := handle.Set(ctx, "test.StorageRoundTrip", key, []byte(value)); err != nil {
				return nil, err
			}
			got, ok, err := handle.Get(ctx, "test.StorageRoundTrip", key)
			if err != nil {
				return nil, err
			}
			return map[string]any{"found": ok, "value": string(got)}, nil
		},
	}))

	return reg
}

func constCodeStep(name, outputKey, fn string, deps []string, mapping map[string]string) StepSpec {
	return StepSpec{
		Name:         name,
		Kind:         KindCode,
		Dependencies: deps,
		OutputKey:    outputKey,
		InputMapping: mapping,
		Code:         &CodeParams{FunctionName: fn},
	}
}
