// Package registry implements the four shared collections the host
// facade uses to track claims, capability descriptors, bindings, and
// worker terminators. Every mutation goes through the Registry's own
// read-write lock; callers never hold a registry lock across a bus
// call (spec.md §4.7, §5).
package registry

import (
	"sync"

	"github.com/lattice-run/lattice-host/pkg/types"
)

// capKey identifies a capability descriptor by binding and capability ID.
type capKey struct {
	binding string
	capID   string
}

// Terminator is the shutdown-sender a worker listens on.
type Terminator chan<- struct{}

// Registry holds the shared, read-mostly state every worker consults.
type Registry struct {
	mu sync.RWMutex

	claims      map[string]types.ActorClaims
	caps        map[capKey]types.CapabilityDescriptor
	bindings    []types.Binding
	terminators map[string]Terminator
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		claims:      make(map[string]types.ActorClaims),
		caps:        make(map[capKey]types.CapabilityDescriptor),
		terminators: make(map[string]Terminator),
	}
}

// PutClaims registers claims for an actor public key.
func (r *Registry) PutClaims(pk string, c types.ActorClaims) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims[pk] = c
}

// Claims returns the claims registered for pk, and whether they exist.
// The returned value is a copy: callers may hold it across a bus call
// without re-acquiring the registry lock.
func (r *Registry) Claims(pk string) (types.ActorClaims, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.claims[pk]
	return c, ok
}

// HasActor reports whether pk has registered claims.
func (r *Registry) HasActor(pk string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.claims[pk]
	return ok
}

// RemoveClaims deletes the claims entry for pk.
func (r *Registry) RemoveClaims(pk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.claims, pk)
}

// PutCapability registers a capability descriptor, rejecting a
// duplicate (binding, capID) pair.
func (r *Registry) PutCapability(desc types.CapabilityDescriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := capKey{binding: desc.BindingName, capID: desc.ID}
	if _, exists := r.caps[key]; exists {
		return false
	}
	r.caps[key] = desc
	return true
}

// Capability looks up a registered descriptor.
func (r *Registry) Capability(capID, binding string) (types.CapabilityDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.caps[capKey{binding: binding, capID: capID}]
	return d, ok
}

// RemoveCapability deletes a capability descriptor.
func (r *Registry) RemoveCapability(capID, binding string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.caps, capKey{binding: binding, capID: capID})
}

// AddBinding appends a binding row. Bindings are append-only during
// normal operation (spec.md §5); removal only happens as part of
// an actor worker's drain, via RemoveBindingsForActor.
func (r *Registry) AddBinding(b types.Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = append(r.bindings, b)
}

// BindingsForActor returns every binding whose ActorPK matches pk.
func (r *Registry) BindingsForActor(pk string) []types.Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []types.Binding
	for _, b := range r.bindings {
		if b.ActorPK == pk {
			out = append(out, b)
		}
	}
	return out
}

// RemoveBindingsForActor deletes every binding whose ActorPK matches pk.
func (r *Registry) RemoveBindingsForActor(pk string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.bindings[:0]
	for _, b := range r.bindings {
		if b.ActorPK != pk {
			kept = append(kept, b)
		}
	}
	r.bindings = kept
}

// Bindings returns a snapshot of every binding row.
func (r *Registry) Bindings() []types.Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Binding, len(r.bindings))
	copy(out, r.bindings)
	return out
}

// PutTerminator registers the shutdown-sender for subject.
func (r *Registry) PutTerminator(subject string, t Terminator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminators[subject] = t
}

// Terminator returns the shutdown-sender for subject, if any.
func (r *Registry) Terminator(subject string) (Terminator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.terminators[subject]
	return t, ok
}

// RemoveTerminator deletes the terminator entry for subject.
func (r *Registry) RemoveTerminator(subject string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.terminators, subject)
}

// Terminators returns a snapshot of every registered subject and its
// shutdown-sender.
func (r *Registry) Terminators() map[string]Terminator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Terminator, len(r.terminators))
	for k, v := range r.terminators {
		out[k] = v
	}
	return out
}

// Actors returns every actor public key with registered claims.
func (r *Registry) Actors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.claims))
	for pk := range r.claims {
		out = append(out, pk)
	}
	return out
}

// Capabilities returns a snapshot of every registered capability descriptor.
func (r *Registry) Capabilities() []types.CapabilityDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.CapabilityDescriptor, 0, len(r.caps))
	for _, d := range r.caps {
		out = append(out, d)
	}
	return out
}
