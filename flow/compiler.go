package flow

import (
	"fmt"
	"sort"
)

// compiledNode is one node of a CompiledGraph: either a document step
// (kind is a real StepKind, including conditional_router) or a synthetic
// join node (IsJoin).
type compiledNode struct {
	Name string

	// Parents are the node names this node's goroutine waits on before it
	// may fire.
	Parents []string

	// RouterParent, when non-empty, names the router or join node whose
	// resolved choice gates whether this node actually executes: the node
	// fires only if that node's choice equals this node's own Name.
	RouterParent string

	// Step is set for every non-join node, including routers and the
	// steps they target.
	Step StepSpec

	IsJoin           bool
	JoinRequiredKeys []string
	JoinGatedStep    string
}

// CompiledGraph is the compiled form of a WorkflowDocument (§3, §4.E): a
// node set, ready to run. A WorkflowDocument compiles once; the result is
// safe to run concurrently any number of times since Run never mutates it.
type CompiledGraph struct {
	Name  string
	Doc   *WorkflowDocument
	Nodes map[string]*compiledNode
	// order lists every node name (steps and synthetic joins) sorted by
	// name, so Run launches node goroutines in a deterministic order.
	order []string
}

// Compile validates doc against the data-model invariants (§3) and
// produces a CompiledGraph implementing the algorithm of §4.E: fan-in
// joins as data-presence gates, router identity nodes, and the implicit
// START/END wiring expressed as the absence/presence of Parents and
// RouterParent rather than literal sentinel nodes.
func Compile(doc *WorkflowDocument) (*CompiledGraph, error) {
	if err := validateUniqueNames(doc); err != nil {
		return nil, err
	}

	outputToProducer, err := buildOutputToProducer(doc)
	if err != nil {
		return nil, err
	}

	if err := validateDependencies(doc, outputToProducer); err != nil {
		return nil, err
	}

	routerTargets, err := collectRouterTargets(doc)
	if err != nil {
		return nil, err
	}

	if err := validateAcyclic(doc, outputToProducer, routerTargets); err != nil {
		return nil, err
	}

	cg := &CompiledGraph{Name: doc.Name, Doc: doc, Nodes: map[string]*compiledNode{}}

	for _, step := range doc.Steps {
		cg.order = append(cg.order, step.Name)
		cg.Nodes[step.Name] = &compiledNode{Name: step.Name, Step: step}
	}

	for _, step := range doc.Steps {
		node := cg.Nodes[step.Name]

		producers := parentProducers(step, outputToProducer)

		_, isRouterTarget := routerTargets[step.Name]

		switch {
		case len(producers) == 0:
			// parent_set empty: either wired from the implicit START (no
			// parents to wait on at all), or reached only via a router, in
			// which case its RouterParent gates it instead.
			if isRouterTarget {
				node.RouterParent = routerTargets[step.Name]
			}
		case len(producers) == 1:
			node.Parents = []string{producers[0]}
			if isRouterTarget {
				// A step reachable from a router must not also connect
				// from START (§4.E step 5); if it also declares ordinary
				// dependencies, the router is an *additional* gate on top
				// of the structural edge.
				node.RouterParent = routerTargets[step.Name]
			}
		default:
			joinName := "join_for_" + step.Name
			join, exists := cg.Nodes[joinName]
			if !exists {
				join = &compiledNode{
					Name:             joinName,
					Parents:          producers,
					IsJoin:           true,
					JoinRequiredKeys: step.Dependencies,
					JoinGatedStep:    step.Name,
				}
				cg.Nodes[joinName] = join
				cg.order = append(cg.order, joinName)
			}
			node.Parents = []string{joinName}
			node.RouterParent = joinName
		}
	}

	sort.Strings(cg.order)
	return cg, nil
}

// parentProducers returns the deduplicated, sorted set of step names that
// produce step's declared dependency keys.
func parentProducers(step StepSpec, outputToProducer map[string]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, dep := range step.Dependencies {
		producer, ok := outputToProducer[dep]
		if !ok {
			continue // already rejected by validateDependencies
		}
		if producer == step.Name {
			continue // self-dependency, already rejected
		}
		if !seen[producer] {
			seen[producer] = true
			out = append(out, producer)
		}
	}
	sort.Strings(out)
	return out
}

func validateUniqueNames(doc *WorkflowDocument) error {
	seen := map[string]bool{}
	for _, step := range doc.Steps {
		if seen[step.Name] {
			return &ValidationError{Workflow: doc.Name, Message: fmt.Sprintf("duplicate step name %q", step.Name)}
		}
		seen[step.Name] = true
	}
	return nil
}

// buildOutputToProducer implements §4.E step 2: every output_key and
// every output_mapping value maps to its producing step. A key produced
// by more than one step is a validation error (no duplicate producers).
func buildOutputToProducer(doc *WorkflowDocument) (map[string]string, error) {
	out := map[string]string{}
	add := func(key, stepName string) error {
		if existing, ok := out[key]; ok && existing != stepName {
			return &ValidationError{Workflow: doc.Name, Message: fmt.Sprintf("output key %q produced by both %q and %q", key, existing, stepName)}
		}
		out[key] = stepName
		return nil
	}

	for _, step := range doc.Steps {
		if step.Kind == KindConditionalRouter {
			continue
		}
		if step.OutputKey == "" {
			return nil, &ValidationError{Workflow: doc.Name, Message: fmt.Sprintf("step %q: non-router step must declare output_key", step.Name)}
		}
		if err := add(step.OutputKey, step.Name); err != nil {
			return nil, err
		}
		if step.Kind == KindWorkflow && step.Workflow != nil {
			for _, parentKey := range step.Workflow.OutputMapping {
				if err := add(parentKey, step.Name); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// validateDependencies implements §3 invariant 1 and the self-dependency
// rule noted in §4.E's tie-breaks.
func validateDependencies(doc *WorkflowDocument, outputToProducer map[string]string) error {
	for _, step := range doc.Steps {
		for _, dep := range step.Dependencies {
			producer, ok := outputToProducer[dep]
			if !ok {
				return &ValidationError{Workflow: doc.Name, Message: fmt.Sprintf("step %q depends on unknown key %q", step.Name, dep)}
			}
			if producer == step.Name {
				return &ValidationError{Workflow: doc.Name, Message: fmt.Sprintf("step %q depends on its own output key %q", step.Name, dep)}
			}
		}
	}
	return nil
}

// collectRouterTargets implements §4.E step 5: the union of every
// router's routing_map values, excluding END, mapped back to the router
// that can reach them. Every router invariant (§3 invariant 4: every
// routing_map value names a step or END) is checked here too.
func collectRouterTargets(doc *WorkflowDocument) (map[string]string, error) {
	targets := map[string]string{}
	for _, step := range doc.Steps {
		if step.Kind != KindConditionalRouter {
			continue
		}
		if step.Router == nil {
			return nil, &ValidationError{Workflow: doc.Name, Message: fmt.Sprintf("router %q missing router params", step.Name)}
		}
		for _, target := range step.Router.RoutingMap {
			if target == RouterEnd {
				continue
			}
			if _, ok := doc.StepByName(target); !ok {
				return nil, &ValidationError{Workflow: doc.Name, Message: fmt.Sprintf("router %q routes to unknown step %q", step.Name, target)}
			}
			targets[target] = step.Name
		}
	}
	return targets, nil
}

// validateAcyclic implements §3 invariant 2: the non-router dependency
// graph must be acyclic, and router edges must not reintroduce a cycle
// (§9 open question c). It walks the combined graph (dependency edges
// plus router edges) and rejects any cycle.
func validateAcyclic(doc *WorkflowDocument, outputToProducer map[string]string, routerTargets map[string]string) error {
	adjacency := map[string][]string{}
	for _, step := range doc.Steps {
		for _, dep := range step.Dependencies {
			producer := outputToProducer[dep]
			adjacency[producer] = append(adjacency[producer], step.Name)
		}
	}
	for _, step := range doc.Steps {
		if step.Kind != KindConditionalRouter || step.Router == nil {
			continue
		}
		for _, target := range step.Router.RoutingMap {
			if target == RouterEnd {
				continue
			}
			adjacency[step.Name] = append(adjacency[step.Name], target)
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case gray:
			return &ValidationError{Workflow: doc.Name, Message: fmt.Sprintf("cycle detected through step %q", name)}
		case black:
			return nil
		}
		color[name] = gray
		for _, next := range adjacency[name] {
			if err := visit(next); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}

	for _, step := range doc.Steps {
		if err := visit(step.Name); err != nil {
			return err
		}
	}
	return nil
}
