// Package nats implements the networked message bus transport over
// NATS. It is grounded on original_source/src/bus/lattice.rs: a queue
// subscription per subject (so only one host instance in a lattice
// answers a given call), a request with a configurable timeout, and
// the same two environment variables.
package nats

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	lhbus "github.com/lattice-run/lattice-host/pkg/bus"
	"github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/log"
	"github.com/lattice-run/lattice-host/pkg/types"
	"github.com/lattice-run/lattice-host/pkg/wire"
	natsgo "github.com/nats-io/nats.go"
)

// Environment variable names from spec.md §6.
const (
	EnvHost        = "LATTICE_HOST"
	EnvRPCTimeout  = "LATTICE_RPC_TIMEOUT_MILLIS"
	defaultHost    = "127.0.0.1"
	defaultTimeout = 500 * time.Millisecond
)

// Bus is the NATS-backed networked transport.
type Bus struct {
	nc *natsgo.Conn

	mu   sync.Mutex
	subs map[string]*natsgo.Subscription
}

var _ lhbus.Bus = (*Bus)(nil)

// Connect dials the NATS broker named by LATTICE_HOST (default
// 127.0.0.1), or url if explicitly provided.
func Connect(url string) (*Bus, error) {
	if url == "" {
		url = getEnv(EnvHost, defaultHost)
	}
	nc, err := natsgo.Connect(url)
	if err != nil {
		return nil, errors.New(errors.KindIO, "connect", err)
	}
	log.WithComponent("bus").Info().Str("url", url).Msg("initialized message bus (nats)")
	return &Bus{nc: nc, subs: make(map[string]*natsgo.Subscription)}, nil
}

func (b *Bus) Subscribe(subject string, inbound chan<- types.Invocation, outbound <-chan types.InvocationResponse) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.subs[subject]; exists {
		return errors.Newf(errors.KindMiscHost, "subscribe", "subject %s already has a subscriber", subject)
	}

	sub, err := b.nc.QueueSubscribe(subject, subject, func(msg *natsgo.Msg) {
		handleMessage(msg, inbound, outbound)
	})
	if err != nil {
		return errors.New(errors.KindIO, "subscribe", err)
	}
	b.subs[subject] = sub
	return nil
}

func handleMessage(msg *natsgo.Msg, inbound chan<- types.Invocation, outbound <-chan types.InvocationResponse) {
	inv, err := wire.DecodeInvocation(msg.Data)
	if err != nil {
		respondError(msg, err)
		return
	}
	inbound <- inv
	resp := <-outbound
	data, err := wire.EncodeResponse(resp)
	if err != nil {
		respondError(msg, err)
		return
	}
	_ = msg.Respond(data)
}

func respondError(msg *natsgo.Msg, err error) {
	resp := types.InvocationResponse{Error: err.Error()}
	if data, encErr := wire.EncodeResponse(resp); encErr == nil {
		_ = msg.Respond(data)
	}
}

func (b *Bus) Invoke(ctx context.Context, subject string, inv types.Invocation) (types.InvocationResponse, error) {
	data, err := wire.EncodeInvocation(inv)
	if err != nil {
		return types.InvocationResponse{}, errors.New(errors.KindSerialization, "invoke", err)
	}

	timeout := getTimeout()
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := b.nc.RequestWithContext(callCtx, subject, data)
	if err != nil {
		if err == natsgo.ErrTimeout || callCtx.Err() != nil {
			return types.InvocationResponse{}, errors.New(errors.KindIO, "invoke", err)
		}
		if err == natsgo.ErrNoResponders {
			return types.InvocationResponse{}, errors.New(errors.KindNoSuchSubscriber, "invoke", err)
		}
		return types.InvocationResponse{}, errors.New(errors.KindIO, "invoke", err)
	}

	resp, err := wire.DecodeResponse(reply.Data)
	if err != nil {
		return types.InvocationResponse{}, errors.New(errors.KindSerialization, "invoke", err)
	}
	return resp, nil
}

func (b *Bus) Unsubscribe(subject string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub, ok := b.subs[subject]
	if !ok {
		return nil
	}
	delete(b.subs, subject)
	if err := sub.Unsubscribe(); err != nil {
		return errors.New(errors.KindIO, "unsubscribe", err)
	}
	return nil
}

func (b *Bus) Close() error {
	b.nc.Close()
	return nil
}

func getEnv(name, def string) string {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	return v
}

func getTimeout() time.Duration {
	v := os.Getenv(EnvRPCTimeout)
	if v == "" {
		return defaultTimeout
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return defaultTimeout
	}
	return time.Duration(ms) * time.Millisecond
}
