// Package flow provides the core graph compiler and execution engine for
// declarative, concurrent workflows: LLM calls, custom code, outbound HTTP
// requests, and embedded sub-workflows wired together as a DAG.
package flow

import "fmt"

// StepKind identifies the flavor of a StepSpec.
type StepKind string

// Supported step kinds. conditional_router carries no output_key; its sole
// purpose is to pick a successor based on a runtime value.
const (
	KindLLM              StepKind = "llm"
	KindCode             StepKind = "code"
	KindAPI              StepKind = "api"
	KindWorkflow         StepKind = "workflow"
	KindConditionalRouter StepKind = "conditional_router"
)

// InputKind describes the declared shape of a WorkflowDocument input.
type InputKind string

const (
	InputText InputKind = "text"
	InputFile InputKind = "file"
	InputJSON InputKind = "json"
)

// InputSpec describes one input the document expects at run start.
type InputSpec struct {
	Name    string    `yaml:"name" json:"name"`
	Kind    InputKind `yaml:"kind" json:"kind"`
	Label   string    `yaml:"label,omitempty" json:"label,omitempty"`
	Default any       `yaml:"default,omitempty" json:"default,omitempty"`
}

// OutputSpec names a document-level output and how an observer should
// render it. display_hint is opaque to the engine; it is passed through
// for the editor/visualizer to interpret.
type OutputSpec struct {
	Name        string `yaml:"name" json:"name"`
	DisplayHint string `yaml:"display_hint,omitempty" json:"display_hint,omitempty"`
}

// StepSpec is a single node in a WorkflowDocument.
//
// Dependencies names the output keys this step reads (used by the compiler
// to compute parent sets and synthesize joins). The LLM, Code, API,
// Workflow and Router fields carry kind-specific configuration; exactly one
// of them should be set for a given Kind.
type StepSpec struct {
	Name         string   `yaml:"name" json:"name"`
	Kind         StepKind `yaml:"kind" json:"kind"`
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// OutputKey is the workflow_data key this step writes. Required for
	// every kind except conditional_router.
	OutputKey string `yaml:"output_key,omitempty" json:"output_key,omitempty"`

	// InputMapping maps a local placeholder name to a dotted state path.
	// Resolved by the Value Resolver before the handler runs.
	InputMapping map[string]string `yaml:"input_mapping,omitempty" json:"input_mapping,omitempty"`

	// MapInput, when set, names a dotted path that must resolve to a list
	// at run time. The step then executes once per element, concurrently.
	MapInput string `yaml:"map_input,omitempty" json:"map_input,omitempty"`

	LLM      *LLMParams      `yaml:"llm,omitempty" json:"llm,omitempty"`
	Code     *CodeParams     `yaml:"code,omitempty" json:"code,omitempty"`
	API      *APIParams      `yaml:"api,omitempty" json:"api,omitempty"`
	Workflow *WorkflowParams `yaml:"workflow,omitempty" json:"workflow,omitempty"`
	Router   *RouterParams   `yaml:"router,omitempty" json:"router,omitempty"`
}

// LLMParams configures an llm-kind step.
type LLMParams struct {
	// PromptTemplate names a file resolved first against the owning
	// workflow's prompts/ directory, then against ../shared_prompts/.
	PromptTemplate string `yaml:"prompt_template" json:"prompt_template"`
	// Model names the model this step expects. It is used only as the model
	// name for cost attribution when the chat model's response reports
	// none; it does not select or replace the chat model installed on the
	// resources, which serves every llm step of the run.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`
}

// CodeParams configures a code-kind step.
type CodeParams struct {
	// FunctionName is the registry key, e.g. "text_analysis.GetTextStats".
	FunctionName string `yaml:"function_name" json:"function_name"`
}

// APIParams configures an api-kind step. Endpoint, Headers, and Body may
// all contain <placeholder> tokens resolved against state before the
// request is issued.
type APIParams struct {
	Method   string         `yaml:"method" json:"method"`
	Endpoint string         `yaml:"endpoint" json:"endpoint"`
	Headers  map[string]any `yaml:"headers,omitempty" json:"headers,omitempty"`
	Body     any            `yaml:"body,omitempty" json:"body,omitempty"`
}

// WorkflowParams configures a sub-workflow step.
type WorkflowParams struct {
	WorkflowName   string            `yaml:"workflow_name" json:"workflow_name"`
	OutputMapping  map[string]string `yaml:"output_mapping,omitempty" json:"output_mapping,omitempty"`
}

// RouterEnd is the sentinel routing_map target meaning "terminate this
// branch"; it is not a real step name.
const RouterEnd = "END"

// RouterParams configures a conditional_router step.
type RouterParams struct {
	ConditionKey string            `yaml:"condition_key" json:"condition_key"`
	RoutingMap   map[string]string `yaml:"routing_map" json:"routing_map"`
}

// WorkflowDocument is the declarative, immutable description of a workflow,
// as loaded from <workflows_root>/<name>/workflow.yaml. Parsing the raw
// YAML text and prompt-template substitution are mechanical concerns left
// to callers (see LoadDocument in loader.go for the thin convenience
// reader this package ships); the compiler operates only on this
// already-parsed shape.
type WorkflowDocument struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Inputs      []InputSpec  `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Steps       []StepSpec   `yaml:"steps" json:"steps"`
	Outputs     []OutputSpec `yaml:"outputs,omitempty" json:"outputs,omitempty"`
}

// StepByName returns the step with the given name, or false if absent.
func (d *WorkflowDocument) StepByName(name string) (StepSpec, bool) {
	for _, s := range d.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepSpec{}, false
}

func (p RouterParams) target(value string) (string, bool) {
	t, ok := p.RoutingMap[value]
	return t, ok
}

func (s StepSpec) String() string {
	return fmt.Sprintf("%s(%s)", s.Name, s.Kind)
}
