package flow

import "time"

// Status is the lifecycle state of a single node execution, carried on
// both DebugRecord and the lifecycle_update stream event.
type Status string

const (
	StatusRunning   Status = "Running"
	StatusCompleted Status = "Completed"
	StatusFailed    Status = "Failed"
)

// DebugRecord is the structured per-node outcome the executor wrapper
// emits: one per executed node, plus one additional record per
// map-over-list iteration (marked IsChild).
type DebugRecord struct {
	StepName   string         `json:"step_name"`
	Type       StepKind       `json:"type"`
	Status     Status         `json:"status"`
	DurationMs int64          `json:"duration_ms"`
	Inputs     map[string]any `json:"inputs"`
	Outputs    any            `json:"outputs"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	IsChild    bool           `json:"is_child,omitempty"`
	// MapIndex is this record's position within a map-over-list fan-out,
	// or nil outside one. A pointer (rather than an omitempty int) so
	// iteration 0 still round-trips in the serialized stream instead of
	// being indistinguishable from "not a child record".
	MapIndex *int `json:"map_index,omitempty"`
}

// ErrorRecord is appended to GraphState.ErrorInfo the first time (and
// every subsequent time) a node fails. Its presence flips the engine into
// fail-fast mode.
type ErrorRecord struct {
	FailedStep string `json:"failed_step"`
	Message    string `json:"message"`
	Traceback  string `json:"traceback"`
}
