// Command flowrun loads a declarative workflow document, compiles it, and
// runs it to completion, printing every event on the observer stream as
// it arrives.
//
// Usage:
//
//	flowrun --workflows-root <dir> --workflow <name> [--llm mock|anthropic|openai|google] [--input key=value ...]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/flowforge/flowgraph/flow"
	"github.com/flowforge/flowgraph/flow/emit"
	"github.com/flowforge/flowgraph/flow/model"
	"github.com/flowforge/flowgraph/flow/model/anthropic"
	"github.com/flowforge/flowgraph/flow/model/google"
	"github.com/flowforge/flowgraph/flow/model/openai"
	"github.com/flowforge/flowgraph/flow/registry"
	"github.com/flowforge/flowgraph/flow/store"
	"github.com/flowforge/flowgraph/flow/transport"
)

type inputFlags map[string]string

func (f inputFlags) String() string {
	var parts []string
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f inputFlags) Set(value string) error {
	k, v, ok := strings.Cut(value, "=")
	if !ok {
		return fmt.Errorf("input %q: expected key=value", value)
	}
	f[k] = v
	return nil
}

// chatModelFor wires --llm to a concrete model.ChatModel. mock (the
// default) needs no credentials and answers every llm step with one fixed
// JSON note; the real adapters read their API key from the provider's
// usual environment variable.
func chatModelFor(provider string) (model.ChatModel, error) {
	switch provider {
	case "", "mock":
		return &model.MockChatModel{
			Responses: []model.ChatOut{{Text: `{"note":"flowrun is running against the mock chat model; pass --llm anthropic|openai|google for a real one"}`}},
		}, nil
	case "anthropic":
		return anthropic.NewChatModel(os.Getenv("ANTHROPIC_API_KEY"), ""), nil
	case "openai":
		return openai.NewChatModel(os.Getenv("OPENAI_API_KEY"), ""), nil
	case "google":
		return google.NewChatModel(os.Getenv("GOOGLE_API_KEY"), ""), nil
	default:
		return nil, fmt.Errorf("unknown --llm provider %q (want mock, anthropic, openai, or google)", provider)
	}
}

func main() {
	root := flag.String("workflows-root", "workflows", "workflows_root directory, holding <name>/workflow.yaml")
	workflowName := flag.String("workflow", "", "name of the top-level workflow to run")
	llmProvider := flag.String("llm", "mock", "chat model backing llm steps: mock, anthropic, openai, or google")
	textLog := flag.Bool("text-log", true, "emit internal node_start/node_end telemetry as text lines to stderr")
	inputs := inputFlags{}
	flag.Var(inputs, "input", "key=value input, repeatable")
	flag.Parse()

	if *workflowName == "" {
		log.Fatal("flowrun: --workflow is required")
	}

	chatModel, err := chatModelFor(*llmProvider)
	if err != nil {
		log.Fatalf("flowrun: %v", err)
	}

	inputValues := make(map[string]any, len(inputs))
	for k, v := range inputs {
		inputValues[k] = v
	}

	orch := flow.NewOrchestrator(*root)

	events, err := orch.Run(context.Background(), *workflowName, inputValues,
		flow.WithChatModel(chatModel),
		flow.WithHTTPClient(transport.NewHTTPClient()),
		flow.WithRegistry(registry.New()),
		flow.WithStorage(store.NewMemoryHandle()),
		flow.WithEmitter(emit.NewLogEmitter(os.Stderr, !*textLog)),
	)
	if err != nil {
		log.Fatalf("flowrun: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			log.Fatalf("flowrun: encode event: %v", err)
		}
	}
}
