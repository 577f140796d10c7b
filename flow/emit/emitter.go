package emit

import "context"

// Emitter receives internal telemetry events from a run. Implementations
// must be non-blocking and safe for concurrent use: every node execution
// of a run may emit independently.
type Emitter interface {
	Emit(event Event)
	Flush(ctx context.Context) error
}

// MultiEmitter fans a single event out to every child emitter, letting a
// run feed a log emitter and an OpenTelemetry emitter simultaneously.
type MultiEmitter struct {
	children []Emitter
}

// NewMultiEmitter returns an Emitter that forwards to every child in order.
func NewMultiEmitter(children ...Emitter) *MultiEmitter {
	return &MultiEmitter{children: children}
}

func (m *MultiEmitter) Emit(event Event) {
	for _, c := range m.children {
		c.Emit(event)
	}
}

func (m *MultiEmitter) Flush(ctx context.Context) error {
	var firstErr error
	for _, c := range m.children {
		if err := c.Flush(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
