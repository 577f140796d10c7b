package flow

import (
	"fmt"
	"os"
	"path/filepath"

	yaml "go.yaml.in/yaml/v2"
)

// LoadDocument reads and parses the workflow.yaml at
// <workflows_root>/<name>/workflow.yaml. Parsing the declarative format is
// a mechanical concern (§1); this is the thin convenience reader the rest
// of the package builds on, not a validating loader — use Compile to
// enforce the data-model invariants.
func LoadDocument(workflowsRoot, name string) (*WorkflowDocument, error) {
	path := filepath.Join(workflowsRoot, name, "workflow.yaml")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow document %q: %w", path, err)
	}
	var doc WorkflowDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse workflow document %q: %w", path, err)
	}
	return &doc, nil
}

// promptLoader resolves a step's prompt_template file, trying the owning
// workflow's own prompts/ directory before falling back to a shared
// prompts/ directory one level above workflows_root (§6).
type promptLoader struct{}

var defaultPromptLoader = promptLoader{}

func (promptLoader) Load(workflowsRoot, workflowName, file string) (string, error) {
	ownPath := filepath.Join(workflowsRoot, workflowName, "prompts", file)
	if raw, err := os.ReadFile(ownPath); err == nil {
		return string(raw), nil
	}

	sharedPath := filepath.Join(workflowsRoot, "..", "shared_prompts", file)
	raw, err := os.ReadFile(sharedPath)
	if err != nil {
		return "", fmt.Errorf("prompt template %q not found at %q or %q", file, ownPath, sharedPath)
	}
	return string(raw), nil
}
