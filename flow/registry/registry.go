// Package registry is the process-global custom-code registry (§6): a
// name→constructor lookup for the code step kind. Document parsing and the
// directory scan that populates it at startup are mechanical, external
// concerns; this package only holds the lookup table and its invariants
// (registration, duplicate detection, schema-validated invocation).
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/flowforge/flowgraph/flow/store"
)

// Step is one registered custom-code handler: a qualified name (e.g.
// "text_analysis.GetTextStats"), its declared input schema, and the
// function that executes it. handle is the optional storage handle the
// run was configured with (§6: "an optional storage handle, used only by
// custom-code steps"); it is nil when no storage was installed on
// Resources, and a Step that doesn't need storage is free to ignore it.
type Step struct {
	Name        string
	InputSchema *jsonschema.Schema
	Execute     func(ctx context.Context, input map[string]any, handle store.Handle) (any, error)
}

// Registry is a process-wide mapping from qualified function name to Step.
// Safe for concurrent registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{steps: make(map[string]Step)}
}

// Register adds step to the registry. Re-registering the same qualified
// name is a startup-time error: the directory scan that populates a
// registry must produce unique qualified names (§6).
func (r *Registry) Register(step Step) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.steps[step.Name]; exists {
		return fmt.Errorf("registry: duplicate qualified name %q", step.Name)
	}
	r.steps[step.Name] = step
	return nil
}

// Lookup returns the Step registered under name, or false if none.
func (r *Registry) Lookup(name string) (Step, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[name]
	return s, ok
}

// Invoke validates input against the step's declared schema, then calls
// its handler, passing through handle (the run's storage resource, or nil
// if none was installed) so a custom-code step can actually reach it.
// Schema validation failures and handler errors are both returned as
// plain errors; the code handler (flow package) is responsible for
// wrapping them into the engine's HandlerError taxonomy.
func (r *Registry) Invoke(ctx context.Context, name string, input map[string]any, handle store.Handle) (any, error) {
	step, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("registry: no step registered as %q", name)
	}

	if step.InputSchema != nil {
		if err := step.InputSchema.Validate(input); err != nil {
			return nil, fmt.Errorf("registry: input for %q failed schema validation: %w", name, err)
		}
	}

	return step.Execute(ctx, input, handle)
}

// CompileSchema compiles a JSON Schema document (as a decoded map) into the
// *jsonschema.Schema a Step.InputSchema expects. A directory-scan loader
// calls this once per discovered step definition.
func CompileSchema(name string, doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("registry: encode schema for %q: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	resourceURL := "mem://" + name
	if err := compiler.AddResource(resourceURL, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("registry: add schema resource for %q: %w", name, err)
	}
	schema, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("registry: compile schema for %q: %w", name, err)
	}
	return schema, nil
}
