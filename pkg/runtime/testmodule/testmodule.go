// Package testmodule is a deterministic Module implementation used by
// host scenario tests in place of a real actor sandbox. It dispatches
// operations through a handler table registered at construction time,
// and exposes the HostCallback it was wired with so tests can call
// back into the host the way a real actor would.
package testmodule

import (
	"context"
	"fmt"

	"github.com/lattice-run/lattice-host/pkg/runtime"
)

// Handler computes a response for a single operation. cb lets the
// handler reach back into the host, mirroring what a compiled actor
// does when it needs a capability.
type Handler func(ctx context.Context, payload []byte, cb runtime.HostCallback) ([]byte, error)

// Module is an in-process stand-in for a sandboxed actor.
type Module struct {
	handlers map[string]Handler
	cb       runtime.HostCallback
	closed   bool
}

var _ runtime.Module = (*Module)(nil)

// New builds a Module from a fixed set of operation handlers.
func New(handlers map[string]Handler, cb runtime.HostCallback) *Module {
	return &Module{handlers: handlers, cb: cb}
}

func (m *Module) Call(ctx context.Context, operation string, payload []byte) ([]byte, error) {
	if m.closed {
		return nil, fmt.Errorf("testmodule: call on closed module")
	}
	h, ok := m.handlers[operation]
	if !ok {
		return nil, fmt.Errorf("testmodule: no handler for operation %q", operation)
	}
	return h(ctx, payload, m.cb)
}

func (m *Module) Close() error {
	m.closed = true
	return nil
}

// Loader builds a Module from a fixed handler table regardless of the
// image bytes it is given, so scenario tests can stand up an actor
// without a real compiled binary.
type Loader struct {
	Handlers map[string]Handler
}

var _ runtime.Loader = (*Loader)(nil)

func (l *Loader) Load(_ context.Context, _ []byte, cb runtime.HostCallback) (runtime.Module, error) {
	return New(l.Handlers, cb), nil
}
