// Package host implements the facade: the public surface that adds,
// removes, and replaces actors and capabilities, wires bindings
// between them, and direct-invokes actors (spec.md §4.8).
package host

import (
	"context"
	"sync"
	"time"

	"github.com/lattice-run/lattice-host/pkg/bus"
	"github.com/lattice-run/lattice-host/pkg/claims"
	"github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/lifecycle"
	"github.com/lattice-run/lattice-host/pkg/log"
	"github.com/lattice-run/lattice-host/pkg/metrics"
	"github.com/lattice-run/lattice-host/pkg/middleware"
	"github.com/lattice-run/lattice-host/pkg/plugin"
	"github.com/lattice-run/lattice-host/pkg/registry"
	"github.com/lattice-run/lattice-host/pkg/runtime"
	"github.com/lattice-run/lattice-host/pkg/types"
)

// claimsCacheTTL bounds how long a validated token is trusted without
// re-verifying its signature; claimsCacheSweep is how often expired
// entries are purged. add_actor and replace_actor both see repeated
// validation of the same token under retry/backoff from a caller, so
// the cache absorbs that without weakening revocation: a revoked or
// expired token still fails once its cache entry ages out.
const (
	claimsCacheTTL   = 5 * time.Minute
	claimsCacheSweep = 10 * time.Minute
)

// AuthHook is consulted at add_actor time; returning false denies the
// add regardless of what the token's own signature says. A nil hook
// always accepts (spec.md §4.2).
type AuthHook func(token string) bool

// Config wires a Host's collaborators.
type Config struct {
	Bus      bus.Bus
	Loader   runtime.Loader // loads actor and portable-provider images
	Chain    *middleware.Chain
	AuthHook AuthHook
}

// Host is the public facade over the bus, registry, and lifecycle engine.
type Host struct {
	bus      bus.Bus
	loader   runtime.Loader
	chain    *middleware.Chain
	authHook AuthHook

	reg         *registry.Registry
	plugins     *plugin.Manager
	claimsCache *claims.Cache

	mu      sync.Mutex
	workers map[string]*lifecycle.Worker // bus subject -> worker
}

// New constructs a Host ready to accept add_actor/add_capability calls.
func New(cfg Config) *Host {
	chain := cfg.Chain
	if chain == nil {
		chain = middleware.NewChain()
	}
	return &Host{
		bus:         cfg.Bus,
		loader:      cfg.Loader,
		chain:       chain,
		authHook:    cfg.AuthHook,
		reg:         registry.New(),
		plugins:     plugin.NewManager(),
		claimsCache: claims.NewCache(claimsCacheTTL, claimsCacheSweep),
		workers:     make(map[string]*lifecycle.Worker),
	}
}

// AddActor validates token, instantiates image in the configured
// loader, and spawns its worker. On any failure no registry entry is
// left behind.
func (h *Host) AddActor(ctx context.Context, token string, image []byte) (string, error) {
	c, err := claims.ValidateCached(h.claimsCache, token)
	if err != nil {
		return "", errors.New(errors.KindClaimsValidation, "add_actor", err)
	}
	pk := c.Subject
	if !types.IsValidActorPK(pk) {
		return "", errors.Newf(errors.KindMiscHost, "add_actor", "invalid actor public key %q", pk)
	}
	if h.reg.HasActor(pk) {
		return "", errors.Newf(errors.KindMiscHost, "add_actor", "already in this host")
	}
	if h.authHook != nil && !h.authHook(token) {
		return "", errors.Newf(errors.KindAuthorization, "add_actor", "auth hook denied actor %s", pk)
	}

	cb := h.makeCallback(pk)
	module, err := h.loader.Load(ctx, image, cb)
	if err != nil {
		return "", errors.New(errors.KindMiscHost, "add_actor", err)
	}

	h.reg.PutClaims(pk, *c)

	w, err := lifecycle.Spawn(lifecycle.Config{
		Subject:  types.ActorSubject(pk),
		Bus:      h.bus,
		Module:   module,
		Chain:    h.chain,
		Kind:     lifecycle.KindActor,
		PK:       pk,
		Registry: h.reg,
		Loader:   h.loader,
		Callback: cb,
	})
	if err != nil {
		h.reg.RemoveClaims(pk)
		_ = module.Close()
		return "", errors.New(errors.KindMiscHost, "add_actor", err)
	}

	h.mu.Lock()
	h.workers[types.ActorSubject(pk)] = w
	h.mu.Unlock()

	if c.HasCap(types.ExtrasCapabilityID) {
		h.reg.AddBinding(types.Binding{ActorPK: pk, CapID: types.ExtrasCapabilityID, BindingName: types.DefaultBindingName})
	}

	log.WithActor(pk).Info().Msg("actor added")
	return pk, nil
}

// RemoveActor sends shutdown and returns immediately; it fails if pk
// has no worker.
func (h *Host) RemoveActor(pk string) error {
	subject := types.ActorSubject(pk)
	w, ok := h.takeWorker(subject)
	if !ok {
		return errors.Newf(errors.KindMiscHost, "remove_actor", "no such actor %s", pk)
	}
	w.Shutdown()
	go func() {
		<-w.Done()
		h.mu.Lock()
		delete(h.workers, subject)
		h.mu.Unlock()
	}()
	return nil
}

// ReplaceActor requires pk to already be present in this host and the
// new token's subject to match pk (same public key, new bytes) before
// delegating to the hot-swap path.
func (h *Host) ReplaceActor(pk, token string, image []byte) error {
	w, ok := h.getWorker(types.ActorSubject(pk))
	if !ok {
		return errors.Newf(errors.KindMiscHost, "replace_actor", "no such actor %s", pk)
	}
	c, err := claims.ValidateForActorCached(h.claimsCache, token, pk)
	if err != nil {
		return errors.New(errors.KindClaimsValidation, "replace_actor", err)
	}
	if err := w.Swap(image, *c); err != nil {
		metrics.HotSwapsTotal.WithLabelValues("failure").Inc()
		return err
	}
	metrics.HotSwapsTotal.WithLabelValues("success").Inc()
	log.WithActor(c.Subject).Info().Msg("actor replaced")
	return nil
}

// AddNativeCapability registers an in-process provider handle and
// spawns its worker.
func (h *Host) AddNativeCapability(capID, binding string, handle plugin.Handle, desc types.CapabilityDescriptor) error {
	if binding == "" {
		binding = types.DefaultBindingName
	}
	desc.ID, desc.BindingName = capID, binding

	if !h.reg.PutCapability(desc) {
		return errors.Newf(errors.KindCapabilityProvider, "add_native_capability", "duplicate capability (%s, %s)", capID, binding)
	}
	h.plugins.Register(capID, binding, handle)

	module := &plugin.ModuleAdapter{Handle: handle}
	subject := types.ProviderSubject(capID, binding)
	w, err := lifecycle.Spawn(lifecycle.Config{
		Subject:     subject,
		Bus:         h.bus,
		Module:      module,
		Chain:       h.chain,
		Kind:        lifecycle.KindProvider,
		CapID:       capID,
		BindingName: binding,
		Registry:    h.reg,
	})
	if err != nil {
		h.reg.RemoveCapability(capID, binding)
		h.plugins.Remove(capID, binding)
		return errors.New(errors.KindMiscHost, "add_native_capability", err)
	}
	h.mu.Lock()
	h.workers[subject] = w
	h.mu.Unlock()

	log.WithCapability(capID, binding).Info().Msg("native capability added")
	return nil
}

// AddCapability loads a portable, sandboxed provider from image bytes
// using the host's configured loader, and spawns its worker.
func (h *Host) AddCapability(ctx context.Context, capID, binding string, image []byte, desc types.CapabilityDescriptor) error {
	if binding == "" {
		binding = types.DefaultBindingName
	}
	desc.ID, desc.BindingName = capID, binding

	if !h.reg.PutCapability(desc) {
		return errors.Newf(errors.KindCapabilityProvider, "add_capability", "duplicate capability (%s, %s)", capID, binding)
	}

	module, err := h.loader.Load(ctx, image, nil)
	if err != nil {
		h.reg.RemoveCapability(capID, binding)
		return errors.New(errors.KindMiscHost, "add_capability", err)
	}

	subject := types.ProviderSubject(capID, binding)
	w, err := lifecycle.Spawn(lifecycle.Config{
		Subject:     subject,
		Bus:         h.bus,
		Module:      module,
		Chain:       h.chain,
		Kind:        lifecycle.KindProvider,
		CapID:       capID,
		BindingName: binding,
		Registry:    h.reg,
	})
	if err != nil {
		h.reg.RemoveCapability(capID, binding)
		_ = module.Close()
		return errors.New(errors.KindMiscHost, "add_capability", err)
	}
	h.mu.Lock()
	h.workers[subject] = w
	h.mu.Unlock()

	log.WithCapability(capID, binding).Info().Msg("portable capability added")
	return nil
}

// RemoveNativeCapability and RemoveCapability both tear down the
// provider worker at (capid, binding); the lifecycle draining path is
// identical for native and portable providers.
func (h *Host) RemoveNativeCapability(capID, binding string) error {
	return h.removeCapability(capID, binding)
}

func (h *Host) RemoveCapability(capID, binding string) error {
	return h.removeCapability(capID, binding)
}

func (h *Host) removeCapability(capID, binding string) error {
	if binding == "" {
		binding = types.DefaultBindingName
	}
	subject := types.ProviderSubject(capID, binding)
	w, ok := h.takeWorker(subject)
	if !ok {
		return errors.Newf(errors.KindMiscHost, "remove_capability", "no such capability (%s, %s)", capID, binding)
	}
	w.Shutdown()
	go func() {
		<-w.Done()
		h.mu.Lock()
		delete(h.workers, subject)
		h.mu.Unlock()
	}()
	return nil
}

// BindActor issues a configuration invocation on the bus and, on
// success, appends the binding row.
func (h *Host) BindActor(ctx context.Context, pk, capID, binding string, values map[string]string) error {
	if binding == "" {
		binding = types.DefaultBindingName
	}
	actorClaims, ok := h.reg.Claims(pk)
	if !ok {
		return errors.Newf(errors.KindMiscHost, "bind_actor", "no such actor %s", pk)
	}
	if !claims.CanInvoke(pk, &actorClaims, capID) {
		return errors.Newf(errors.KindAuthorization, "bind_actor", "actor %s is not authorized for capability %s", pk, capID)
	}

	var targetSubject string
	if types.IsValidActorPK(capID) {
		// the actor is self-configuring another actor acting as a
		// pseudo-provider.
		targetSubject = types.ActorSubject(capID)
	} else {
		targetSubject = types.ProviderSubject(capID, binding)
	}

	payload, err := plugin.EncodeBindConfig(types.BindConfig{Module: pk, Values: values})
	if err != nil {
		return errors.New(errors.KindSerialization, "bind_actor", err)
	}
	inv := types.NewInvocationToCapability(types.SystemActor, capID, binding, types.OpBindActor, payload)

	resp, err := h.bus.Invoke(ctx, targetSubject, inv)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.Newf(errors.KindCapabilityProvider, "bind_actor", "%s", resp.Error)
	}

	h.reg.AddBinding(types.Binding{ActorPK: pk, CapID: capID, BindingName: binding})
	return nil
}

// CallActor issues operation as SYSTEM_ACTOR directly to pk and
// surfaces the sandbox's error verbatim on failure.
func (h *Host) CallActor(ctx context.Context, pk, operation string, msg []byte) ([]byte, error) {
	if !h.reg.HasActor(pk) {
		return nil, errors.Newf(errors.KindMiscHost, "call_actor", "no such actor %s", pk)
	}
	inv := types.NewInvocationToActor(types.SystemActor, pk, operation, msg)
	resp, err := h.bus.Invoke(ctx, types.ActorSubject(pk), inv)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, sandboxError(resp.Error)
	}
	return resp.Msg, nil
}

// sandboxError is a plain error type so CallActor can return the
// sandbox's message unwrapped, as spec.md §7 requires ("surfaces the
// sandbox's textual error verbatim").
type sandboxError string

func (e sandboxError) Error() string { return string(e) }

// ClaimsForActor returns the registered claims for pk.
func (h *Host) ClaimsForActor(pk string) (types.ActorClaims, bool) {
	return h.reg.Claims(pk)
}

// Actors returns every resident actor's public key.
func (h *Host) Actors() []string { return h.reg.Actors() }

// Capabilities returns every registered capability descriptor.
func (h *Host) Capabilities() []types.CapabilityDescriptor { return h.reg.Capabilities() }

// Registry exposes the underlying registry for read-only collaborators
// such as the metrics collector.
func (h *Host) Registry() *registry.Registry { return h.reg }

// Plugins exposes the underlying native-provider manager for read-only
// collaborators such as the metrics collector.
func (h *Host) Plugins() *plugin.Manager { return h.plugins }

// Shutdown signals every worker to drain and waits for all of them.
func (h *Host) Shutdown() {
	h.mu.Lock()
	workers := make([]*lifecycle.Worker, 0, len(h.workers))
	for _, w := range h.workers {
		workers = append(workers, w)
	}
	h.mu.Unlock()

	for _, w := range workers {
		w.Shutdown()
	}
	for _, w := range workers {
		<-w.Done()
	}

	h.mu.Lock()
	h.workers = make(map[string]*lifecycle.Worker)
	h.mu.Unlock()

	log.WithComponent("host").Info().Msg("host shutdown complete")
}

func (h *Host) getWorker(subject string) (*lifecycle.Worker, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.workers[subject]
	return w, ok
}

func (h *Host) takeWorker(subject string) (*lifecycle.Worker, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.workers[subject]
	return w, ok
}

// makeCallback builds the HostCallback a sandbox uses to reach back
// into the host on behalf of callerPK. It performs only a bus invoke
// — it never takes the registry lock across that call (spec.md §4.4, §9).
func (h *Host) makeCallback(callerPK string) runtime.HostCallback {
	return func(ctx context.Context, namespace, binding, operation string, payload []byte) ([]byte, error) {
		callerClaims, ok := h.reg.Claims(callerPK)
		if !ok {
			return nil, errors.Newf(errors.KindMiscHost, "host-callback", "caller %s has no claims", callerPK)
		}

		var subject string
		var inv types.Invocation
		if types.IsValidActorPK(namespace) {
			subject = types.ActorSubject(namespace)
			inv = types.NewInvocationToActor(callerPK, namespace, operation, payload)
		} else {
			if !claims.CanInvoke(callerPK, &callerClaims, namespace) {
				return nil, errors.Newf(errors.KindAuthorization, "host-callback", "actor %s is not authorized for capability %s", callerPK, namespace)
			}
			subject = types.ProviderSubject(namespace, binding)
			inv = types.NewInvocationToCapability(callerPK, namespace, binding, operation, payload)
		}

		resp, err := h.bus.Invoke(ctx, subject, inv)
		if err != nil {
			return nil, err
		}
		if resp.Error != "" {
			return nil, errors.Newf(errors.KindCapabilityProvider, "host-callback", "%s", resp.Error)
		}
		return resp.Msg, nil
	}
}
