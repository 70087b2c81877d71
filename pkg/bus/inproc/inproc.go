// Package inproc implements the in-process message bus transport: a
// send on the subscriber's inbound channel plus a blocking receive per
// invocation, with no timeout of its own. The send is not unbounded:
// it blocks while the subscriber's channel is full, and both the send
// and the receive give up only when ctx is done. It is grounded on original_source/src/bus/inproc.rs,
// generalized from a crossbeam channel map guarded by a Rust RwLock to
// a Go sync.RWMutex-guarded map, following the same locking idiom the
// teacher uses for its own shared maps (pkg/worker.Worker.containersMu).
package inproc

import (
	"context"
	"fmt"
	"sync"

	lhbus "github.com/lattice-run/lattice-host/pkg/bus"
	"github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/log"
	"github.com/lattice-run/lattice-host/pkg/types"
)

type subscription struct {
	inbound  chan<- types.Invocation
	outbound <-chan types.InvocationResponse
}

// Bus is the in-process transport.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]subscription
}

var _ lhbus.Bus = (*Bus)(nil)

// New creates an empty in-process bus.
func New() *Bus {
	log.WithComponent("bus").Info().Msg("initialized message bus (in-process)")
	return &Bus{subs: make(map[string]subscription)}
}

func (b *Bus) Subscribe(subject string, inbound chan<- types.Invocation, outbound <-chan types.InvocationResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.subs[subject]; exists {
		return errors.Newf(errors.KindMiscHost, "subscribe", "subject %s already has a subscriber", subject)
	}
	b.subs[subject] = subscription{inbound: inbound, outbound: outbound}
	return nil
}

func (b *Bus) Invoke(ctx context.Context, subject string, inv types.Invocation) (types.InvocationResponse, error) {
	b.mu.RLock()
	sub, ok := b.subs[subject]
	b.mu.RUnlock()
	if !ok {
		return types.InvocationResponse{}, errors.Newf(errors.KindNoSuchSubscriber, "invoke", "no subscribers for %s", subject)
	}

	select {
	case sub.inbound <- inv:
	case <-ctx.Done():
		return types.InvocationResponse{}, errors.New(errors.KindIO, "invoke", ctx.Err())
	}

	select {
	case resp := <-sub.outbound:
		return resp, nil
	case <-ctx.Done():
		return types.InvocationResponse{}, errors.New(errors.KindIO, "invoke", ctx.Err())
	}
}

func (b *Bus) Unsubscribe(subject string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, subject)
	return nil
}

func (b *Bus) Close() error { return nil }

func (b *Bus) String() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fmt.Sprintf("inproc.Bus{subjects=%d}", len(b.subs))
}
