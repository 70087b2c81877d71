package inproc

import (
	"context"
	"testing"
	"time"

	"github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke_NoSubscriber(t *testing.T) {
	b := New()
	_, err := b.Invoke(context.Background(), "wasmbus.actor.M1", types.Invocation{})
	require.Error(t, err)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindNoSuchSubscriber, kind)
}

func TestSubscribeInvoke_RoundTrip(t *testing.T) {
	b := New()
	inbound := make(chan types.Invocation)
	outbound := make(chan types.InvocationResponse)
	require.NoError(t, b.Subscribe("subj", inbound, outbound))

	done := make(chan struct{})
	go func() {
		defer close(done)
		inv := <-inbound
		outbound <- types.InvocationResponse{Msg: append([]byte("echo:"), inv.Msg...)}
	}()

	resp, err := b.Invoke(context.Background(), "subj", types.Invocation{Msg: []byte("hi")})
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", string(resp.Msg))
	<-done
}

func TestSubscribe_DuplicateRejected(t *testing.T) {
	b := New()
	inbound := make(chan types.Invocation, 1)
	outbound := make(chan types.InvocationResponse, 1)
	require.NoError(t, b.Subscribe("subj", inbound, outbound))

	err := b.Subscribe("subj", inbound, outbound)
	require.Error(t, err)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindMiscHost, kind)
}

func TestUnsubscribe_IdempotentOnMissing(t *testing.T) {
	b := New()
	assert.NoError(t, b.Unsubscribe("never-subscribed"))
	assert.NoError(t, b.Unsubscribe("never-subscribed"))
}

func TestUnsubscribe_RemovesSubscription(t *testing.T) {
	b := New()
	inbound := make(chan types.Invocation, 1)
	outbound := make(chan types.InvocationResponse, 1)
	require.NoError(t, b.Subscribe("subj", inbound, outbound))
	require.NoError(t, b.Unsubscribe("subj"))

	_, err := b.Invoke(context.Background(), "subj", types.Invocation{})
	require.Error(t, err)
}

func TestInvoke_ContextCanceledWhileWaitingForReply(t *testing.T) {
	b := New()
	inbound := make(chan types.Invocation, 1)
	outbound := make(chan types.InvocationResponse) // never written to
	require.NoError(t, b.Subscribe("subj", inbound, outbound))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.Invoke(ctx, "subj", types.Invocation{})
	require.Error(t, err)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindIO, kind)
}
