// Package store provides the optional storage handle custom-code steps may
// use (§6: "an optional storage handle, used only by custom-code steps").
// It is a plain namespaced key-value surface, not a checkpoint/replay
// mechanism: a run is memory-resident end to end, and at-rest persistence
// of workflow runs themselves is explicitly out of scope.
package store

import "context"

// Handle is the storage surface a code-step handler may request from its
// resources. Values are opaque to the engine; a handler is responsible for
// serializing whatever it stores.
type Handle interface {
	// Get retrieves the value previously stored at key, within namespace
	// ns. ok is false if nothing has been stored there.
	Get(ctx context.Context, ns, key string) (value []byte, ok bool, err error)

	// Set stores value at key within namespace ns, overwriting any prior
	// value.
	Set(ctx context.Context, ns, key string, value []byte) error

	// Delete removes the value at key within namespace ns. Deleting an
	// absent key is not an error.
	Delete(ctx context.Context, ns, key string) error

	// Close releases the handle's underlying resources.
	Close() error
}
