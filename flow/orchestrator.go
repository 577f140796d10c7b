package flow

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Orchestrator is the facade (§4.H) that wires the compiler, the
// execution engine, the resource provider, and the event streaming layer
// together for one run: it is the only entry point most callers need.
type Orchestrator struct {
	WorkflowsRoot string
	Cache         *Cache
}

// NewOrchestrator returns an Orchestrator rooted at workflowsRoot, backed
// by a fresh sub-workflow cache.
func NewOrchestrator(workflowsRoot string) *Orchestrator {
	return &Orchestrator{WorkflowsRoot: workflowsRoot, Cache: NewCache()}
}

// Run compiles (or reuses the cached compilation of) the named top-level
// workflow, seeds its initial state from the document's declared Inputs
// and the caller-supplied values, and drives the run to completion,
// returning the merged observer-facing event stream (§4.G, §4.H).
//
// The returned channel is closed after exactly one EventResult has been
// sent. If the caller stops reading before that (abandons the stream),
// every node goroutine still in flight unblocks as soon as ctx is
// cancelled; Run itself never blocks the caller beyond ctx's lifetime.
func (o *Orchestrator) Run(ctx context.Context, workflowName string, inputs map[string]any, opts ...ResourceOption) (<-chan StreamEvent, error) {
	cg, err := o.Cache.Get(o.WorkflowsRoot, workflowName)
	if err != nil {
		return nil, err
	}
	return o.RunCompiled(ctx, cg, inputs, opts...)
}

// RunCompiled runs an already-compiled graph, for callers that compiled
// (or loaded) the document themselves rather than going through the
// sub-workflow cache by name.
func (o *Orchestrator) RunCompiled(ctx context.Context, cg *CompiledGraph, inputs map[string]any, opts ...ResourceOption) (<-chan StreamEvent, error) {
	runID := uuid.NewString()
	ctx = WithRunID(ctx, runID)

	initialData, err := seedInputs(cg.Doc, inputs)
	if err != nil {
		return nil, err
	}

	res := NewResources(opts...)
	if res.Workflows == nil {
		res.Workflows = o.Cache
	}

	rc := RunContext{
		Resources:     res,
		WorkflowsRoot: o.WorkflowsRoot,
		WorkflowName:  cg.Name,
	}

	primary := cg.Run(ctx, initialData, rc)
	return mergeEventStreams(ctx, primary, res), nil
}

// seedInputs validates that every InputSpec without a Default has a
// caller-supplied value, and returns the initial workflow_data: the
// caller's values, falling back to each InputSpec's Default when absent.
func seedInputs(doc *WorkflowDocument, inputs map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(doc.Inputs))
	for _, spec := range doc.Inputs {
		if v, ok := inputs[spec.Name]; ok {
			out[spec.Name] = v
			continue
		}
		if spec.Default != nil {
			out[spec.Name] = spec.Default
			continue
		}
		return nil, fmt.Errorf("workflow %q: missing required input %q", doc.Name, spec.Name)
	}
	// Pass through any extra caller-supplied values not declared as
	// InputSpecs too, rather than silently dropping them: a step may read
	// them via input_mapping even though the document didn't advertise
	// them as a formal input.
	for k, v := range inputs {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out, nil
}

// mergeEventStreams implements the Event Streaming Layer's merge
// coroutine (§4.G, §9): one goroutine forwards every auxiliary
// sub-workflow event, wrapped as a sub_workflow_event, until the run's
// auxiliary queue closes. A second goroutine forwards the primary graph's
// events verbatim but holds back its terminal EventResult rather than
// relaying it immediately; once the primary stream is exhausted it closes
// the auxiliary queue (main-graph completion is the sentinel), waits for
// the auxiliary forwarder to fully drain, and only then sends the held
// result and closes the merged output.
//
// Without this hand-off a buffered sub_workflow_event could still be
// draining onto the merged stream after result had already been sent,
// violating §4.G/§8 property 6's "result is the last event" guarantee;
// withholding it until the auxiliary side has provably gone quiet is what
// makes that guarantee hold even when sub-workflows are involved.
func mergeEventStreams(ctx context.Context, primary <-chan StreamEvent, res *Resources) <-chan StreamEvent {
	out := make(chan StreamEvent, 64)

	send := func(ev StreamEvent) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	auxDone := make(chan struct{})
	go func() {
		defer close(auxDone)
		for item := range res.AuxQueue.ch {
			send(subWorkflowEvent(item.parentStep, item.subWorkflow, item.event, item.mapIndex))
		}
	}()

	go func() {
		defer close(out)

		var result *StreamEvent
		for ev := range primary {
			if ev.Type == EventResult {
				held := ev
				result = &held
				continue
			}
			send(ev)
		}

		res.AuxQueue.close()
		<-auxDone

		if result != nil {
			send(*result)
		}
	}()

	return out
}
