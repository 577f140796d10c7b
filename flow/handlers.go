package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowforge/flowgraph/flow/model"
)

// RunContext carries everything a node handler needs beyond its own
// step spec and resolved context data: the resource provider, the
// filesystem root prompt templates and sub-workflow documents are loaded
// from, and the name of the workflow this graph was compiled from (used
// to resolve prompts/<file> relative to the right directory).
type RunContext struct {
	Resources     *Resources
	WorkflowsRoot string
	WorkflowName  string

	// MapIndex is non-nil when this handler invocation is one iteration of
	// a map-over-list fan-out; sub-workflow event forwarding tags its
	// events with it (§4.C, §4.G).
	MapIndex *int
	// ParentStep is the step name this invocation runs under, used to tag
	// forwarded sub-workflow events.
	ParentStep string
}

// handlerResult is what every kind-specific handler returns: the raw
// output value, the resolved_inputs map recorded on the DebugRecord, and
// any extra records the handler itself produced (only non-empty for the
// workflow kind, whose extra records are the entire sub-run's debug_log).
type handlerResult struct {
	output        any
	resolvedInputs map[string]any
	extraRecords  []DebugRecord
}

// resolveInputMapping resolves every entry of a step's input_mapping
// (local placeholder name -> dotted state path) against contextData,
// returning a flat map keyed by the local placeholder name.
func resolveInputMapping(mapping map[string]string, contextData map[string]any) map[string]any {
	out := make(map[string]any, len(mapping))
	for local, path := range mapping {
		out[local] = ResolveRef(contextData, path)
	}
	return out
}

// allNull reports whether every value in inputs is nil; the llm handler
// uses this to detect upstream data loss early (§4.C).
func allNull(inputs map[string]any) bool {
	for _, v := range inputs {
		if v != nil {
			return false
		}
	}
	return true
}

// runLLM implements the llm step kind (§4.C): resolve input_mapping,
// partition resolved values into multimodal prompt parts, load and
// interpolate the prompt template, invoke the chat model, and parse its
// response as JSON.
func runLLM(ctx context.Context, step StepSpec, contextData map[string]any, rc RunContext) (handlerResult, error) {
	resolvedInputs := resolveInputMapping(step.InputMapping, contextData)

	if len(resolvedInputs) > 0 && allNull(resolvedInputs) {
		return handlerResult{}, &InputResolutionError{
			StepName: step.Name,
			Message:  "every resolved input is null",
		}
	}

	if step.LLM == nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: fmt.Errorf("llm step missing params")}
	}

	template, err := loadPromptTemplate(rc.WorkflowsRoot, rc.WorkflowName, step.LLM.PromptTemplate)
	if err != nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: err}
	}

	parts := buildMultimodalParts(template, resolvedInputs)

	if rc.Resources == nil || rc.Resources.Chat == nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: fmt.Errorf("no chat model installed on resources")}
	}

	out, err := rc.Resources.Chat.Chat(ctx, []model.Message{{Role: model.RoleUser, Parts: parts}}, nil)
	if err != nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: fmt.Errorf("chat model call failed: %w", err)}
	}

	callModel := out.Model
	if callModel == "" {
		callModel = step.LLM.Model
	}
	rc.Resources.costRecordLLMCall(callModel, step.Name, out.Usage.InputTokens, out.Usage.OutputTokens)

	var parsed any
	if err := json.Unmarshal([]byte(out.Text), &parsed); err != nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: fmt.Errorf("parse model response as JSON: %w", err)}
	}

	return handlerResult{output: parsed, resolvedInputs: resolvedInputs}, nil
}

// buildMultimodalParts splits template on <ref> tokens, resolving each
// against resolvedInputs (flat local names, per ResolveRef's bare-key
// rule). A ref resolving to a {mime_type, data} shape becomes a standalone
// PartMedia; everything else is stringified directly into the running
// text segment (§4.C).
func buildMultimodalParts(template string, resolvedInputs map[string]any) []model.Part {
	toks := findRefs(template)
	if len(toks) == 0 {
		return []model.Part{{Type: model.PartText, Text: template}}
	}

	var parts []model.Part
	var text strings.Builder
	last := 0
	flush := func() {
		if text.Len() > 0 {
			parts = append(parts, model.Part{Type: model.PartText, Text: text.String()})
			text.Reset()
		}
	}

	for _, t := range toks {
		text.WriteString(template[last:t.start])
		val := ResolveRef(resolvedInputs, t.ref)
		if mediaPart, ok := model.IsMediaValue(val); ok {
			flush()
			parts = append(parts, mediaPart)
		} else {
			text.WriteString(stringify(val))
		}
		last = t.end
	}
	text.WriteString(template[last:])
	flush()

	if len(parts) == 0 {
		return []model.Part{{Type: model.PartText, Text: ""}}
	}
	return parts
}

// runCode implements the code step kind (§4.C): resolve input_mapping into
// a dict, invoke the registered custom-code handler (which validates its
// own declared input schema) passing through the run's optional storage
// handle (§6), and return its result unchanged.
func runCode(ctx context.Context, step StepSpec, contextData map[string]any, rc RunContext) (handlerResult, error) {
	resolvedInputs := resolveInputMapping(step.InputMapping, contextData)

	if step.Code == nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: fmt.Errorf("code step missing params")}
	}
	if rc.Resources == nil || rc.Resources.Registry == nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: fmt.Errorf("no code registry installed on resources")}
	}

	out, err := rc.Resources.Registry.Invoke(ctx, step.Code.FunctionName, resolvedInputs, rc.Resources.Storage)
	if err != nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: err}
	}

	return handlerResult{output: out, resolvedInputs: resolvedInputs}, nil
}

// runAPI implements the api step kind (§4.C): resolve endpoint, headers,
// and body through ResolvePlaceholders against the full context (dotted
// state paths, not input_mapping), issue the request, and parse its body.
func runAPI(ctx context.Context, step StepSpec, contextData map[string]any, rc RunContext) (handlerResult, error) {
	if step.API == nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: fmt.Errorf("api step missing params")}
	}
	if rc.Resources == nil || rc.Resources.HTTP == nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: fmt.Errorf("no HTTP client installed on resources")}
	}

	endpoint, _ := ResolvePlaceholders(step.API.Endpoint, contextData).(string)

	resolvedHeaders := map[string]string{}
	if step.API.Headers != nil {
		resolvedTree := ResolvePlaceholders(step.API.Headers, contextData)
		if m, ok := resolvedTree.(map[string]any); ok {
			for k, v := range m {
				resolvedHeaders[k] = stringify(v)
			}
		}
	}

	resolvedBody := ResolvePlaceholders(step.API.Body, contextData)

	resolvedInputs := map[string]any{
		"method":   step.API.Method,
		"endpoint": endpoint,
		"headers":  resolvedHeaders,
		"body":     resolvedBody,
	}

	out, err := rc.Resources.HTTP.Do(ctx, step.API.Method, endpoint, resolvedHeaders, resolvedBody)
	if err != nil {
		return handlerResult{resolvedInputs: resolvedInputs}, &HandlerError{StepName: step.Name, Cause: err}
	}

	return handlerResult{output: out, resolvedInputs: resolvedInputs}, nil
}

// runWorkflow implements the workflow step kind (§4.C): compile (or reuse
// the cached compilation of) the named sub-workflow, build its initial
// state from input_mapping, run it to completion while forwarding its
// events onto the auxiliary queue, translate a failed sub-run into this
// node's failure, and project its outputs back via output_mapping.
//
// Decision: output_mapping entries are written
// both under this step's own output_key (as a nested dict keyed by
// parent_key) and flattened directly into the top-level workflow_data, so
// that output_to_producer's rule ("every value of every output_mapping"
// maps to this step) holds for downstream dependency resolution while
// invariant 3 ("every non-router step has output_key") still holds.
func runWorkflow(ctx context.Context, step StepSpec, contextData map[string]any, rc RunContext) (handlerResult, error) {
	if step.Workflow == nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: fmt.Errorf("workflow step missing params")}
	}
	if rc.Resources == nil || rc.Resources.Workflows == nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: fmt.Errorf("no sub-workflow cache installed on resources")}
	}

	resolvedInputs := resolveInputMapping(step.InputMapping, contextData)

	subGraph, err := rc.Resources.Workflows.Get(rc.WorkflowsRoot, step.Workflow.WorkflowName)
	if err != nil {
		return handlerResult{}, &HandlerError{StepName: step.Name, Cause: err}
	}

	subRC := RunContext{
		Resources:     rc.Resources,
		WorkflowsRoot: rc.WorkflowsRoot,
		WorkflowName:  step.Workflow.WorkflowName,
	}

	events := subGraph.Run(ctx, resolvedInputs, subRC)

	var subDebugLog []DebugRecord
	var finalState GraphState
	for se := range events {
		if rc.Resources.AuxQueue != nil {
			rc.Resources.AuxQueue.push(rc.ParentStep, step.Workflow.WorkflowName, rc.MapIndex, se)
		}
		if se.Type == EventResult {
			if rd, ok := se.Data.(ResultData); ok {
				finalState = rd.State
				subDebugLog = rd.State.DebugLog
			}
		}
	}

	if finalState.Failed() {
		first := finalState.ErrorInfo[0]
		return handlerResult{resolvedInputs: resolvedInputs, extraRecords: subDebugLog},
			&HandlerError{StepName: step.Name, Cause: fmt.Errorf("sub-workflow %q failed: %s", step.Workflow.WorkflowName, first.Message)}
	}

	projected := make(map[string]any, len(step.Workflow.OutputMapping))
	for subKey, parentKey := range step.Workflow.OutputMapping {
		projected[parentKey] = ResolveRef(finalState.WorkflowData, subKey)
	}

	return handlerResult{output: projected, resolvedInputs: resolvedInputs, extraRecords: subDebugLog}, nil
}

// runRouter implements the conditional_router step kind (§4.C, §4.E step
// 7): resolve condition_key, stringify the value, and look up the target
// in routing_map with no fallthrough.
func runRouter(step StepSpec, contextData map[string]any) (resolvedInputs map[string]any, target string, err error) {
	if step.Router == nil {
		return nil, "", &HandlerError{StepName: step.Name, Cause: fmt.Errorf("router step missing params")}
	}
	value := ResolveRef(contextData, step.Router.ConditionKey)
	strValue := stringify(value)

	resolvedInputs = map[string]any{"condition_value": strValue}

	t, ok := step.Router.RoutingMap[strValue]
	if !ok {
		return resolvedInputs, "", &RouterError{StepName: step.Name, Value: strValue}
	}
	return resolvedInputs, t, nil
}

// loadPromptTemplate resolves params.prompt_template first against
// <workflows_root>/<workflow_name>/prompts/<file>, then against
// <workflows_root>/../shared_prompts/<file> (§6).
func loadPromptTemplate(workflowsRoot, workflowName, file string) (string, error) {
	return defaultPromptLoader.Load(workflowsRoot, workflowName, file)
}
