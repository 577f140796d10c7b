package flow

import (
	"github.com/flowforge/flowgraph/flow/emit"
	"github.com/flowforge/flowgraph/flow/model"
	"github.com/flowforge/flowgraph/flow/registry"
	"github.com/flowforge/flowgraph/flow/store"
	"github.com/flowforge/flowgraph/flow/transport"
)

// Resources is the resource provider every node handler reads from (§6):
// a chat model for llm steps, an HTTP client for api steps, the
// custom-code registry for code steps, an optional storage handle, and
// the auxiliary sub-workflow event queue a run's workflow steps forward
// their nested events through.
//
// Resources is read-mostly: transport clients are acquired once per run by
// the orchestrator facade and shared by every concurrently-running node.
type Resources struct {
	Chat      model.ChatModel
	HTTP      transport.Client
	Registry  *registry.Registry
	Storage   store.Handle
	AuxQueue  *AuxQueue
	Workflows *Cache

	// Metrics and Cost are ambient observability hooks; either may be nil.
	Metrics *Metrics
	Cost    *CostTracker

	// Emitter is the internal telemetry sink (node_start/node_end events);
	// when nil, the emit helper method below discards every event.
	Emitter emit.Emitter
}

// ResourceOption configures a Resources value via functional options,
// mirroring the engine's own Option pattern.
type ResourceOption func(*Resources)

// WithChatModel installs the llm step kind's chat model.
func WithChatModel(m model.ChatModel) ResourceOption {
	return func(r *Resources) { r.Chat = m }
}

// WithHTTPClient installs the api step kind's HTTP client.
func WithHTTPClient(c transport.Client) ResourceOption {
	return func(r *Resources) { r.HTTP = c }
}

// WithRegistry installs the code step kind's custom-code registry.
func WithRegistry(reg *registry.Registry) ResourceOption {
	return func(r *Resources) { r.Registry = reg }
}

// WithStorage installs the optional storage handle custom-code steps may
// use.
func WithStorage(h store.Handle) ResourceOption {
	return func(r *Resources) { r.Storage = h }
}

// WithWorkflowCache installs the sub-workflow cache the workflow step kind
// compiles and looks up sub-workflows through.
func WithWorkflowCache(c *Cache) ResourceOption {
	return func(r *Resources) { r.Workflows = c }
}

// WithMetrics installs the ambient Prometheus metrics sink.
func WithMetrics(m *Metrics) ResourceOption {
	return func(r *Resources) { r.Metrics = m }
}

// WithCostTracker installs the ambient LLM cost tracker.
func WithCostTracker(t *CostTracker) ResourceOption {
	return func(r *Resources) { r.Cost = t }
}

// WithEmitter installs the internal telemetry emitter.
func WithEmitter(e emit.Emitter) ResourceOption {
	return func(r *Resources) { r.Emitter = e }
}

// emit forwards ev to the installed Emitter, a safe no-op when none was
// configured.
func (r *Resources) emit(ev emit.Event) {
	if r == nil || r.Emitter == nil {
		return
	}
	r.Emitter.Emit(ev)
}

func (r *Resources) metricsStarted() {
	if r == nil {
		return
	}
	r.Metrics.nodeStarted()
}

func (r *Resources) metricsFinished(stepName string, kind StepKind, status Status, durationMs int64) {
	if r == nil {
		return
	}
	r.Metrics.nodeFinished(stepName, kind, status, durationMs)
}

func (r *Resources) metricsMapFanout(n int) {
	if r == nil {
		return
	}
	r.Metrics.mapFanout(n)
}

func (r *Resources) metricsFailFastSkip() {
	if r == nil {
		return
	}
	r.Metrics.failFastSkip()
}

// costRecordLLMCall forwards to the installed CostTracker, a safe no-op
// when no tracker was configured for this run.
func (r *Resources) costRecordLLMCall(model, stepName string, inputTokens, outputTokens int) {
	if r == nil || r.Cost == nil {
		return
	}
	r.Cost.RecordLLMCall(model, stepName, inputTokens, outputTokens)
}

// NewResources builds a Resources value, applying opts in order. The
// auxiliary event queue is always freshly created per run by the
// orchestrator facade (§4.H), never supplied via an option.
func NewResources(opts ...ResourceOption) *Resources {
	r := &Resources{AuxQueue: newAuxQueue()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
