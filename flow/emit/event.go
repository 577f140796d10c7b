// Package emit is the engine's internal telemetry layer: every lifecycle
// transition and debug record the executor wrapper produces is also
// emitted here, independent of the public stream event types the
// orchestrator facade exposes to observers (see the flow package's
// StreamEvent). This separation lets the same run feed a log emitter, an
// OpenTelemetry tracer, and the observer-facing event stream at once.
package emit

// Event is one internal telemetry occurrence during a run.
type Event struct {
	// RunID identifies the run that produced this event.
	RunID string

	// StepName identifies the node.
	StepName string

	// Msg is a short machine-readable label: "node_start" or "node_end".
	Msg string

	// Meta carries event-specific structured data (duration_ms, status,
	// error, and so on).
	Meta map[string]any
}
