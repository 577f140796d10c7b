package flow

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/flowforge/flowgraph/flow/emit"
)

// nodeOutcome is what the executor wrapper produces for one node firing:
// the state delta to reduce in, and the stream events to publish, in the
// order they must appear (lifecycle RUNNING first, then any log events,
// then the terminal lifecycle update). routerTarget is only meaningful
// for conditional_router steps.
type nodeOutcome struct {
	delta        GraphState
	events       []StreamEvent
	routerTarget string
}

// runExecutor implements the Node Executor Wrapper (§4.D): a uniform
// timing/error/map-over-list/debug-record shell around any kind-specific
// handler (§4.C). The fail-fast gate (step 1) is the caller's
// responsibility (the engine checks it before invoking runExecutor at
// all, since a gated node must not even start running its handler's
// timer); everything from "start the timer" onward lives here.
func runExecutor(ctx context.Context, step StepSpec, contextData map[string]any, rc RunContext, res *Resources) nodeOutcome {
	runID, _ := ctx.Value(runIDKey{}).(string)

	events := []StreamEvent{lifecycleEvent(step.Name, StatusRunning)}
	res.emit(emit.Event{RunID: runID, StepName: step.Name, Msg: "node_start"})
	res.metricsStarted()

	start := time.Now()

	var (
		record       DebugRecord
		delta        GraphState
		routerTarget string
	)

	if step.MapInput != "" {
		record, delta = runMapped(ctx, step, contextData, rc, res)
	} else {
		record, delta, routerTarget = runSingle(ctx, step, contextData, rc)
	}

	record.DurationMs = time.Since(start).Milliseconds()
	record.Timestamp = start

	// Extra records (a mapped step's child records, or a sub-workflow's
	// entire nested debug_log) precede this node's own summary record, so
	// a sub-workflow's trace reads as a contiguous block sandwiched
	// between the outer step's start and end (§4.C runWorkflow, S5).
	delta.DebugLog = append(delta.DebugLog, record)
	if record.Status == StatusFailed {
		delta.ErrorInfo = append(delta.ErrorInfo, ErrorRecord{
			FailedStep: step.Name,
			Message:    record.Error,
			Traceback:  record.Error,
		})
	}

	for _, r := range delta.DebugLog {
		events = append(events, logEvent(r))
	}
	events = append(events, lifecycleEvent(step.Name, record.Status))

	res.metricsFinished(step.Name, step.Kind, record.Status, record.DurationMs)
	res.emit(emit.Event{
		RunID:    runID,
		StepName: step.Name,
		Msg:      "node_end",
		Meta: map[string]any{
			"status":      string(record.Status),
			"duration_ms": record.DurationMs,
			"error":       record.Error,
		},
	})

	return nodeOutcome{delta: delta, events: events, routerTarget: routerTarget}
}

// runSingle executes one (non-mapped) invocation of step's handler,
// dispatching on kind, and assembles its parent DebugRecord.
func runSingle(ctx context.Context, step StepSpec, contextData map[string]any, rc RunContext) (DebugRecord, GraphState, string) {
	hr, routerTarget, err := invokeHandler(ctx, step, contextData, rc)

	record := DebugRecord{
		StepName: step.Name,
		Type:     step.Kind,
		Inputs:   sanitizeInputs(hr.resolvedInputs),
	}

	delta := GraphState{WorkflowData: map[string]any{}}
	delta.DebugLog = append(delta.DebugLog, hr.extraRecords...)

	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		return record, delta, routerTarget
	}

	record.Status = StatusCompleted
	record.Outputs = sanitizeJSON(hr.output)

	// A router is the identity function on state (§4.E): its output
	// carries only the routing decision, which must never land in
	// workflow_data (routers never declare an output_key, invariant 3).
	if step.Kind != KindConditionalRouter {
		applyOutput(step, hr.output, delta.WorkflowData)
	}
	return record, delta, routerTarget
}

// runMapped implements map-over-list parallelism (§4.D step 4, §5.3, §9):
// the input list's length is unknown until runtime, so iterations fan out
// dynamically inside this single logical node rather than as separate
// graph nodes. Iterations run concurrently; their outputs are collected
// back in input order. Per §9 open question (a), the first iteration
// failure (by index, not completion order) aborts the whole step.
func runMapped(ctx context.Context, step StepSpec, contextData map[string]any, rc RunContext, res *Resources) (DebugRecord, GraphState) {
	listVal := ResolveRef(contextData, step.MapInput)
	items, ok := listVal.([]any)
	if !ok {
		err := &InputResolutionError{StepName: step.Name, Message: fmt.Sprintf("map_input %q did not resolve to a list", step.MapInput)}
		return DebugRecord{StepName: step.Name, Type: step.Kind, Status: StatusFailed, Error: err.Error()}, GraphState{WorkflowData: map[string]any{}}
	}

	res.metricsMapFanout(len(items))

	outputs := make([]any, len(items))
	childRecords := make([]DebugRecord, len(items))
	extra := make([][]DebugRecord, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item any) {
			defer wg.Done()
			iterStart := time.Now()
			overlay := make(map[string]any, len(contextData)+2)
			for k, v := range contextData {
				overlay[k] = v
			}
			overlay["item"] = item
			overlay["map_index"] = i

			iterRC := rc
			iterRC.MapIndex = &i
			hr, _, err := invokeHandler(ctx, step, overlay, iterRC)

			rec := DebugRecord{
				StepName:   step.Name,
				Type:       step.Kind,
				Inputs:     sanitizeInputs(hr.resolvedInputs),
				IsChild:    true,
				MapIndex:   &i,
				DurationMs: time.Since(iterStart).Milliseconds(),
				Timestamp:  iterStart,
			}
			if err != nil {
				rec.Status = StatusFailed
				rec.Error = err.Error()
				errs[i] = err
			} else {
				rec.Status = StatusCompleted
				rec.Outputs = sanitizeJSON(hr.output)
				outputs[i] = hr.output
			}
			childRecords[i] = rec
			extra[i] = hr.extraRecords
		}(i, item)
	}
	wg.Wait()

	delta := GraphState{WorkflowData: map[string]any{}}
	for i := range items {
		delta.DebugLog = append(delta.DebugLog, childRecords[i])
		delta.DebugLog = append(delta.DebugLog, extra[i]...)
	}

	record := DebugRecord{StepName: step.Name, Type: step.Kind}

	firstErrIdx := -1
	for i, err := range errs {
		if err != nil {
			firstErrIdx = i
			break
		}
	}
	if firstErrIdx >= 0 {
		record.Status = StatusFailed
		record.Error = errs[firstErrIdx].Error()
		return record, delta
	}

	record.Status = StatusCompleted
	record.Outputs = sanitizeJSON(outputs)
	if step.OutputKey != "" {
		delta.WorkflowData[step.OutputKey] = outputs
	}
	return record, delta
}

// invokeHandler dispatches to the kind-specific logic handler (§4.C),
// recovering a panic into a HandlerError with a captured traceback so a
// custom-code bug never takes down the run.
func invokeHandler(ctx context.Context, step StepSpec, contextData map[string]any, rc RunContext) (hr handlerResult, routerTarget string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerError{StepName: step.Name, Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack())}
		}
	}()

	switch step.Kind {
	case KindLLM:
		hr, err = runLLM(ctx, step, contextData, rc)
	case KindCode:
		hr, err = runCode(ctx, step, contextData, rc)
	case KindAPI:
		hr, err = runAPI(ctx, step, contextData, rc)
	case KindWorkflow:
		hr, err = runWorkflow(ctx, step, contextData, rc)
	case KindConditionalRouter:
		var resolvedInputs map[string]any
		resolvedInputs, routerTarget, err = runRouter(step, contextData)
		hr = handlerResult{resolvedInputs: resolvedInputs, output: map[string]any{"target": routerTarget}}
	default:
		err = &HandlerError{StepName: step.Name, Cause: fmt.Errorf("unknown step kind %q", step.Kind)}
	}
	return hr, routerTarget, err
}

// applyOutput implements §4.D step 3's update rule: the handler's output
// is written under output_key when set; otherwise (only possible for a
// kind that somehow has none) the raw output, which must itself be a
// mapping, is merged directly. The workflow kind additionally flattens its
// output_mapping projections to the top level (documented in handlers.go,
// runWorkflow) so output_to_producer's bookkeeping of those keys holds.
func applyOutput(step StepSpec, output any, data map[string]any) {
	if step.OutputKey != "" {
		data[step.OutputKey] = output
	} else if m, ok := output.(map[string]any); ok {
		for k, v := range m {
			data[k] = v
		}
	}

	if step.Kind == KindWorkflow {
		if m, ok := output.(map[string]any); ok {
			for k, v := range m {
				data[k] = v
			}
		}
	}
}
