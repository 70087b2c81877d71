// Package runtime defines the boundary between the host and a
// running actor sandbox. It replaces containerd-based process
// isolation: actor execution is modeled as an in-process interface so
// the host never shells out to, or manages the lifecycle of, an OS
// container or VM runtime.
package runtime

import "context"

// HostCallback is the function an actor sandbox invokes to reach back
// into the host — for example to call a bound capability provider.
// The binding name selects among multiple providers of the same
// capability (spec.md §4.2).
type HostCallback func(ctx context.Context, capID, bindingName, operation string, payload []byte) ([]byte, error)

// Module is a running actor instance. A concrete implementation may
// back this with a WebAssembly runtime, a subprocess, or — as
// pkg/runtime/testmodule does — a plain in-process operation table.
// The host never reaches inside a Module; it only calls Call and Close.
type Module interface {
	// Call dispatches operation to the module, synchronously. Modules
	// are single-threaded: the host never issues overlapping calls.
	Call(ctx context.Context, operation string, payload []byte) ([]byte, error)

	// Close releases any resources the module holds. Call must not be
	// invoked after Close returns.
	Close() error
}

// Loader instantiates a Module from a compiled actor image and wires
// its HostCallback.
type Loader interface {
	Load(ctx context.Context, image []byte, cb HostCallback) (Module, error)
}
