package emit

import "context"

// NullEmitter discards every event. Useful as a default when no observer
// has asked for telemetry beyond the stream events themselves.
type NullEmitter struct{}

func (NullEmitter) Emit(Event) {}

func (NullEmitter) Flush(context.Context) error { return nil }
