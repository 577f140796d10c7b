package flow

// GraphState is the run's mutable state, shared by every node execution of
// a single run. Nodes never mutate it directly; they return a partial
// update that the engine merges in via Reduce.
//
// workflow_data merges shallowly: each node writes disjoint keys, a
// guarantee the compiler enforces by rejecting documents with duplicate
// output_key producers, so concurrent writers never race on the same key.
// The three log fields concatenate. There is no general deep-merge;
// nested updates must occur within a single output value.
type GraphState struct {
	WorkflowData map[string]any
	DebugLog     []DebugRecord
	ExecutionLog []string
	ErrorInfo    []ErrorRecord
}

// NewGraphState returns a GraphState with initialized, empty containers.
func NewGraphState() GraphState {
	return GraphState{WorkflowData: map[string]any{}}
}

// Failed reports whether fail-fast mode has been entered: at least one
// node has appended an ErrorRecord.
func (s GraphState) Failed() bool {
	return len(s.ErrorInfo) > 0
}

// Has reports whether workflow_data already carries a value for key.
func (s GraphState) Has(key string) bool {
	if s.WorkflowData == nil {
		return false
	}
	_, ok := s.WorkflowData[key]
	return ok
}

// Reduce merges a partial update (delta) into the accumulated state
// (prev), applying the field-wise rule from §4.A of the design: shallow
// key-union for workflow_data, concatenation for the log fields.
//
// Reduce is the only place state mutation happens; every other component
// only ever produces deltas.
func Reduce(prev, delta GraphState) GraphState {
	if prev.WorkflowData == nil {
		prev.WorkflowData = map[string]any{}
	}
	for k, v := range delta.WorkflowData {
		prev.WorkflowData[k] = v
	}
	prev.DebugLog = append(prev.DebugLog, delta.DebugLog...)
	prev.ExecutionLog = append(prev.ExecutionLog, delta.ExecutionLog...)
	prev.ErrorInfo = append(prev.ErrorInfo, delta.ErrorInfo...)
	return prev
}

// clone produces a shallow copy of state suitable for handing to a
// concurrently-running node: the workflow_data map is copied so that a
// node reading context_data cannot observe a sibling's in-flight delta
// before it has been reduced, but values within the map are not deep
// copied (nested mutation inside a single output value is the node's
// own responsibility, per §4.A).
func (s GraphState) clone() map[string]any {
	out := make(map[string]any, len(s.WorkflowData))
	for k, v := range s.WorkflowData {
		out[k] = v
	}
	return out
}
