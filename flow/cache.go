package flow

import "sync"

// Cache is the process-wide sub-workflow compilation cache (§4.F): the
// first workflow step that references a given sub-workflow name compiles
// it on demand from <workflows_root>/<name>/workflow.yaml; every
// subsequent reference, from any run, reuses the same *CompiledGraph.
//
// Get holds the lock across loading and compiling, so concurrent first
// references to the same name compile it once and later callers wait for
// that compilation rather than repeating it. There is no
// eviction: a process that serves many distinct sub-workflow names keeps
// all of their compiled graphs resident for its lifetime, matching the
// "no eviction" rule of §4.F.
type Cache struct {
	mu    sync.Mutex
	byName map[string]*CompiledGraph
}

// NewCache returns an empty sub-workflow cache.
func NewCache() *Cache {
	return &Cache{byName: map[string]*CompiledGraph{}}
}

// Get returns the compiled graph for name, compiling it from
// workflowsRoot on first use.
func (c *Cache) Get(workflowsRoot, name string) (*CompiledGraph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cg, ok := c.byName[name]; ok {
		return cg, nil
	}

	doc, err := LoadDocument(workflowsRoot, name)
	if err != nil {
		return nil, err
	}
	cg, err := Compile(doc)
	if err != nil {
		return nil, err
	}
	c.byName[name] = cg
	return cg, nil
}
