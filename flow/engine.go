package flow

import (
	"context"
	"sync"
)

// runIDKey is the context key the orchestrator facade stashes the run ID
// under, so the executor wrapper can tag internal telemetry events
// without threading an extra parameter through every handler call.
type runIDKey struct{}

// WithRunID returns a context carrying runID for telemetry tagging.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// nodeRuntime is one compiled node's per-run bookkeeping: done closes
// exactly once, after which selected is safe to read without
// further synchronization (write-before-close, read-after-receive is the
// same happens-before edge Go's memory model guarantees for channel
// close).
type nodeRuntime struct {
	done chan struct{}

	// selected is meaningful only for router and join nodes: the name of
	// the single downstream step this node's firing has chosen, or ""
	// when nothing downstream should proceed (an unmatched router value
	// that still resolved, or a join whose required keys were not all
	// present).
	selected string
}

// runState is the mutable, mutex-guarded accumulator a single Run shares
// across every concurrently-executing node goroutine. GraphState itself
// carries no synchronization; runState supplies it.
type runState struct {
	mu    sync.Mutex
	state GraphState
}

func (rs *runState) snapshot() (map[string]any, bool) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.state.clone(), rs.state.Failed()
}

func (rs *runState) reduce(delta GraphState) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.state = Reduce(rs.state, delta)
}

func (rs *runState) final() GraphState {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.state
}

// Run executes cg to completion against ctx, seeded with initialData as
// the starting workflow_data, and returns the ordered observer-facing
// event stream for this single graph (§4.G's two intrinsic event
// sources: on_chain_start/on_chain_end driven lifecycle_update and log
// events, plus the terminal result). It does not itself merge in any
// sub-workflow's auxiliary queue; that merge is done once, by the
// orchestrator facade (§4.H) around the top-level call to Run. The
// workflow step kind's handler (handlers.go, runWorkflow) calls Run
// directly for each sub-workflow and pushes every nested event onto the
// run's auxiliary queue.
//
// Run never mutates cg, so the same *CompiledGraph may be run
// concurrently any number of times — the precondition the sub-workflow
// cache (§4.F) relies on.
func (cg *CompiledGraph) Run(ctx context.Context, initialData map[string]any, rc RunContext) <-chan StreamEvent {
	out := make(chan StreamEvent, 64)

	rs := &runState{state: NewGraphState()}
	for k, v := range initialData {
		rs.state.WorkflowData[k] = v
	}

	runtimes := make(map[string]*nodeRuntime, len(cg.Nodes))
	for name := range cg.Nodes {
		runtimes[name] = &nodeRuntime{done: make(chan struct{})}
	}

	send := func(ev StreamEvent) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	var wg sync.WaitGroup
	for _, name := range cg.order {
		node := cg.Nodes[name]
		wg.Add(1)
		go func(node *compiledNode) {
			defer wg.Done()
			runNode(ctx, cg, node, runtimes, rs, rc, send)
		}(node)
	}

	go func() {
		wg.Wait()
		send(resultEvent(rs.final()))
		close(out)
	}()

	return out
}

// waitAll blocks until every named node's done channel has closed, or ctx
// is cancelled.
func waitAll(ctx context.Context, runtimes map[string]*nodeRuntime, names []string) bool {
	for _, n := range names {
		select {
		case <-runtimes[n].done:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// runNode is the per-node goroutine body: wait for structural and
// routing predecessors, apply the fail-fast gate, and either run the
// node through the executor wrapper or skip it, before recording the
// outcome and unblocking this node's own dependents.
func runNode(ctx context.Context, cg *CompiledGraph, node *compiledNode, runtimes map[string]*nodeRuntime, rs *runState, rc RunContext, send func(StreamEvent)) {
	rt := runtimes[node.Name]
	defer close(rt.done)

	if !waitAll(ctx, runtimes, node.Parents) {
		return
	}

	if node.RouterParent != "" {
		gate := runtimes[node.RouterParent]
		select {
		case <-gate.done:
		case <-ctx.Done():
			return
		}
		if gate.selected != node.Name {
			return // not the branch this router/join chose; stays un-run.
		}
	}

	if node.IsJoin {
		runJoin(rs, node, rt)
		return
	}

	ctxData, failed := rs.snapshot()
	if failed {
		rc.Resources.metricsFailFastSkip()
		return // §4.D step 1: fail-fast gate, no record, no event.
	}

	childRC := rc
	childRC.ParentStep = node.Name

	outcome := runExecutor(ctx, node.Step, ctxData, childRC, rc.Resources)
	rs.reduce(outcome.delta)
	for _, ev := range outcome.events {
		send(ev)
	}

	if node.Step.Kind == KindConditionalRouter {
		rt.selected = outcome.routerTarget
	}
}

// runJoin implements §4.E step 6's fan-in barrier as a data predicate: a
// join node carries no handler of its own and emits no events; once all
// of its parent producers have finished, it fires its gated step only if
// every declared dependency key the gated step needs is present in
// workflow_data. A failed (or skipped) parent never writes its key, so
// the predicate is automatically false and the gated step silently never
// runs — fail-fast falls out of the same mechanism used for ordinary
// conditional routing (§9 Design notes).
func runJoin(rs *runState, node *compiledNode, rt *nodeRuntime) {
	data, _ := rs.snapshot()
	for _, key := range node.JoinRequiredKeys {
		if _, ok := data[key]; !ok {
			rt.selected = ""
			return
		}
	}
	rt.selected = node.JoinGatedStep
}
