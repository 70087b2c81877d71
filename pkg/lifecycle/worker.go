// Package lifecycle implements the per-entity worker: one goroutine
// per actor or provider, subscribed to its bus subject, that pumps
// invocations through middleware and into a sandbox, and tears itself
// down cleanly on command (spec.md §4.5).
package lifecycle

import (
	"bytes"
	"context"
	"encoding/gob"
	"sync"

	"github.com/google/uuid"
	"github.com/lattice-run/lattice-host/pkg/bus"
	lherrors "github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/log"
	"github.com/lattice-run/lattice-host/pkg/middleware"
	"github.com/lattice-run/lattice-host/pkg/registry"
	"github.com/lattice-run/lattice-host/pkg/runtime"
	"github.com/lattice-run/lattice-host/pkg/types"
)

// Kind distinguishes the two entities a worker can host.
type Kind int

const (
	KindActor Kind = iota
	KindProvider
)

// hotSwapOperation is a sentinel Invocation.Operation value recognized
// only by the worker's own serve loop; it never reaches a sandbox and
// is never sent over the bus. It rides the same inbound channel as
// ordinary invocations so in-flight messages stay correctly ordered
// around a swap.
const hotSwapOperation = "__lattice_hot_swap__"

type swapPayload struct {
	Image  []byte
	Claims types.ActorClaims
}

func encodeSwap(p swapPayload) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeSwap(data []byte) (swapPayload, error) {
	var p swapPayload
	err := gob.NewDecoder(bytes.NewReader(data)).Decode(&p)
	return p, err
}

// Config describes the worker to spawn. PK is set for KindActor;
// CapID/BindingName are set for KindProvider.
type Config struct {
	Subject     string
	Bus         bus.Bus
	Module      runtime.Module
	Chain       *middleware.Chain
	Kind        Kind
	PK          string
	CapID       string
	BindingName string
	Registry    *registry.Registry

	// Loader and Callback are only required to support replace_actor;
	// a worker that never swaps may omit them.
	Loader   runtime.Loader
	Callback runtime.HostCallback
}

// Worker owns one sandbox instance and its bus subscription.
type Worker struct {
	cfg     Config
	inbound chan types.Invocation
	outbnd  chan types.InvocationResponse
	shut    chan struct{}
	done    chan struct{}
	once    sync.Once

	mu     sync.Mutex
	module runtime.Module

	pendingSwaps sync.Map // invocation id -> chan error
}

// Spawn performs the "spawning" state: subscribe to the bus, then
// start the serve loop. Failure here never mutates the registry.
func Spawn(cfg Config) (*Worker, error) {
	w := &Worker{
		cfg:     cfg,
		inbound: make(chan types.Invocation, 8),
		outbnd:  make(chan types.InvocationResponse, 1),
		shut:    make(chan struct{}),
		done:    make(chan struct{}),
		module:  cfg.Module,
	}
	if err := cfg.Bus.Subscribe(cfg.Subject, w.inbound, w.outbnd); err != nil {
		return nil, err
	}
	cfg.Registry.PutTerminator(cfg.Subject, w.shut)
	go w.serve()
	log.WithSubject(cfg.Subject).Info().Msg("worker spawned")
	return w, nil
}

// Done is closed once the worker has fully drained and exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Shutdown signals the worker to enter the draining state. It is safe
// to call more than once.
func (w *Worker) Shutdown() {
	w.once.Do(func() { close(w.shut) })
}

func (w *Worker) serve() {
	defer close(w.done)
	for {
		select {
		case inv := <-w.inbound:
			w.handle(inv)
		case <-w.shut:
			w.drain()
			return
		}
	}
}

func (w *Worker) handle(inv types.Invocation) {
	if inv.Operation == hotSwapOperation {
		w.handleSwap(inv)
		return
	}

	inv2, err := w.cfg.Chain.RunBefore(inv)
	if err != nil {
		w.outbnd <- types.InvocationResponse{Error: err.Error()}
		return
	}

	w.mu.Lock()
	mod := w.module
	w.mu.Unlock()

	msg, callErr := mod.Call(context.Background(), inv2.Operation, inv2.Msg)
	resp := types.InvocationResponse{Msg: msg}
	if callErr != nil {
		resp.Error = callErr.Error()
	}

	resp2, err := w.cfg.Chain.RunAfter(inv2, resp, w.cfg.Kind == KindActor)
	if err != nil {
		resp2 = types.InvocationResponse{Error: err.Error()}
	}
	w.outbnd <- resp2
}

func (w *Worker) handleSwap(inv types.Invocation) {
	ackAny, ok := w.pendingSwaps.LoadAndDelete(inv.ID)
	ack, _ := ackAny.(chan error)

	payload, err := decodeSwap(inv.Msg)
	if err != nil {
		if ok {
			ack <- lherrors.New(lherrors.KindSerialization, "hot-swap", err)
		}
		return
	}

	if w.cfg.Loader == nil {
		if ok {
			ack <- lherrors.Newf(lherrors.KindMiscHost, "hot-swap", "worker has no loader configured")
		}
		return
	}

	newModule, err := w.cfg.Loader.Load(context.Background(), payload.Image, w.cfg.Callback)
	if err != nil {
		if ok {
			ack <- lherrors.New(lherrors.KindMiscHost, "hot-swap", err)
		}
		return
	}

	w.mu.Lock()
	old := w.module
	w.module = newModule
	w.mu.Unlock()
	_ = old.Close()

	w.cfg.Registry.PutClaims(w.cfg.PK, payload.Claims)
	log.WithActor(w.cfg.PK).Info().Msg("actor hot-swapped")

	if ok {
		ack <- nil
	}
}

// Swap drives replace_actor on an actor worker: it enqueues a
// distinguished message on the same inbound channel ordinary
// invocations use, so messages already queued ahead of it are served
// against the old sandbox first. If the worker has already drained
// (racing a concurrent RemoveActor/RemoveCapability) nobody is left
// reading either channel, so both sides of the exchange also select
// on w.done to fail fast instead of blocking forever.
func (w *Worker) Swap(image []byte, claims types.ActorClaims) error {
	data, err := encodeSwap(swapPayload{Image: image, Claims: claims})
	if err != nil {
		return lherrors.New(lherrors.KindSerialization, "hot-swap", err)
	}

	id := uuid.NewString()
	ack := make(chan error, 1)
	w.pendingSwaps.Store(id, ack)

	select {
	case w.inbound <- types.Invocation{ID: id, Origin: types.SystemActor, Operation: hotSwapOperation, Msg: data}:
	case <-w.done:
		w.pendingSwaps.Delete(id)
		return lherrors.Newf(lherrors.KindMiscHost, "hot-swap", "worker already shut down")
	}

	select {
	case err := <-ack:
		return err
	case <-w.done:
		w.pendingSwaps.Delete(id)
		return lherrors.Newf(lherrors.KindMiscHost, "hot-swap", "worker shut down before swap completed")
	}
}

// drain implements the "draining" state: tear down bindings (actors)
// or self-deinitialize (providers), unsubscribe, and release the
// registry entries keyed by this worker's subject.
func (w *Worker) drain() {
	switch w.cfg.Kind {
	case KindActor:
		for _, b := range w.cfg.Registry.BindingsForActor(w.cfg.PK) {
			target := types.ProviderSubject(b.CapID, b.BindingName)
			inv := types.NewInvocationToCapability(types.SystemActor, b.CapID, b.BindingName, types.OpRemoveActor, []byte(w.cfg.PK))
			if _, err := w.cfg.Bus.Invoke(context.Background(), target, inv); err != nil {
				log.WithActor(w.cfg.PK).Warn().Err(err).Str("capability", b.CapID).Msg("OP_REMOVE_ACTOR delivery failed during drain")
			}
		}
		w.cfg.Registry.RemoveBindingsForActor(w.cfg.PK)
		w.cfg.Registry.RemoveClaims(w.cfg.PK)
	case KindProvider:
		w.mu.Lock()
		mod := w.module
		w.mu.Unlock()
		if _, err := mod.Call(context.Background(), types.OpDeinitialize, nil); err != nil {
			log.WithCapability(w.cfg.CapID, w.cfg.BindingName).Warn().Err(err).Msg("OP_DEINITIALIZE failed during drain")
		}
		w.cfg.Registry.RemoveCapability(w.cfg.CapID, w.cfg.BindingName)
	}

	_ = w.cfg.Bus.Unsubscribe(w.cfg.Subject)
	w.cfg.Registry.RemoveTerminator(w.cfg.Subject)

	w.mu.Lock()
	mod := w.module
	w.mu.Unlock()
	_ = mod.Close()

	log.WithSubject(w.cfg.Subject).Info().Msg("worker drained")
}
