// Package plugin is the native capability provider registry. A native
// provider runs in-process (as opposed to a portable, sandboxed
// provider) and is reached through a Handle rather than a
// runtime.Module, but is wired into the same lifecycle worker shape
// via the ModuleAdapter below.
package plugin

import (
	"context"
	"sync"

	"github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/runtime"
	"github.com/lattice-run/lattice-host/pkg/types"
)

// Handle is a dynamically loaded native provider. Configure is called
// for every OP_BIND_ACTOR invocation; HandleCall answers every other
// operation routed to the provider's subject.
type Handle interface {
	Configure(config types.BindConfig) error
	HandleCall(ctx context.Context, operation string, payload []byte) ([]byte, error)
	Close() error
}

// Manager owns the (binding, capid) -> Handle table for loaded native
// providers.
type Manager struct {
	mu      sync.RWMutex
	handles map[key]Handle
}

type key struct {
	binding string
	capID   string
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{handles: make(map[key]Handle)}
}

// Register inserts h under (binding, capid), rejecting a duplicate.
func (m *Manager) Register(capID, binding string, h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{binding: binding, capID: capID}
	if _, exists := m.handles[k]; exists {
		return false
	}
	m.handles[k] = h
	return true
}

// Lookup returns the handle registered for (capid, binding).
func (m *Manager) Lookup(capID, binding string) (Handle, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.handles[key{binding: binding, capID: capID}]
	return h, ok
}

// Remove deletes the handle registered for (capid, binding).
func (m *Manager) Remove(capID, binding string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handles, key{binding: binding, capID: capID})
}

// ModuleAdapter makes a native Handle satisfy runtime.Module, so the
// lifecycle package's worker can host native and portable providers
// identically: OP_BIND_ACTOR routes to Configure, everything else
// (including OP_DEINITIALIZE) routes to HandleCall. Close is reached
// separately, via the worker's own mod.Close() on drain, not through
// Call.
type ModuleAdapter struct {
	Handle Handle
}

var _ runtime.Module = (*ModuleAdapter)(nil)

func (a *ModuleAdapter) Call(ctx context.Context, operation string, payload []byte) ([]byte, error) {
	if operation == types.OpBindActor {
		var cfg types.BindConfig
		if err := decodeBindConfig(payload, &cfg); err != nil {
			return nil, errors.New(errors.KindSerialization, "plugin.configure", err)
		}
		if err := a.Handle.Configure(cfg); err != nil {
			return nil, errors.New(errors.KindCapabilityProvider, "plugin.configure", err)
		}
		return nil, nil
	}
	out, err := a.Handle.HandleCall(ctx, operation, payload)
	if err != nil {
		return nil, errors.New(errors.KindCapabilityProvider, "plugin.call", err)
	}
	return out, nil
}

func (a *ModuleAdapter) Close() error {
	return a.Handle.Close()
}
