package host

import (
	"context"
	"testing"
	"time"

	"github.com/lattice-run/lattice-host/pkg/bus/inproc"
	"github.com/lattice-run/lattice-host/pkg/claims"
	"github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/middleware"
	"github.com/lattice-run/lattice-host/pkg/plugin"
	"github.com/lattice-run/lattice-host/pkg/runtime"
	"github.com/lattice-run/lattice-host/pkg/runtime/testmodule"
	"github.com/lattice-run/lattice-host/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pingLoader is a runtime.Loader that always returns a Module
// answering "ping" with the given reply, ignoring the image bytes.
type pingLoader struct{ reply string }

func (l *pingLoader) Load(_ context.Context, _ []byte, cb runtime.HostCallback) (runtime.Module, error) {
	return testmodule.New(map[string]testmodule.Handler{
		"ping": func(ctx context.Context, payload []byte, _ runtime.HostCallback) ([]byte, error) {
			return []byte(l.reply), nil
		},
	}, cb), nil
}

func newTestHost(t *testing.T, reply string) (*Host, *claims.Issuer) {
	iss, err := claims.NewIssuer()
	require.NoError(t, err)
	h := New(Config{
		Bus:    inproc.New(),
		Loader: &pingLoader{reply: reply},
		Chain:  middleware.NewChain(),
	})
	return h, iss
}

func issueToken(t *testing.T, iss *claims.Issuer, pk string, caps []string) string {
	tok, err := iss.Issue(pk, types.ActorClaims{Subject: pk, Caps: caps})
	require.NoError(t, err)
	return tok
}

func actorPK(n byte) string {
	pk := make([]byte, 56)
	pk[0] = 'M'
	for i := 1; i < 56; i++ {
		pk[i] = 'A' + n
	}
	return string(pk)
}

// Invariant 1: after add_actor and before remove_actor, claims_for_actor
// returns the registered claims and actors() contains pk exactly once.
func TestInvariant1_ClaimsResidentBetweenAddAndRemove(t *testing.T) {
	h, iss := newTestHost(t, "pong")
	pk := actorPK(0)
	token := issueToken(t, iss, pk, []string{"wascc:http_server"})

	_, err := h.AddActor(context.Background(), token, []byte("image"))
	require.NoError(t, err)

	c, ok := h.ClaimsForActor(pk)
	require.True(t, ok)
	assert.True(t, c.HasCap("wascc:http_server"))

	count := 0
	for _, a := range h.Actors() {
		if a == pk {
			count++
		}
	}
	assert.Equal(t, 1, count)

	require.NoError(t, h.RemoveActor(pk))
}

// Invariant 2: add_native_capability succeeds at most once per (capid,binding).
func TestInvariant2_DuplicateCapabilityRejected(t *testing.T) {
	h, _ := newTestHost(t, "pong")
	handle := &noopHandle{}
	require.NoError(t, h.AddNativeCapability("wascc:keyvalue", "default", handle, types.CapabilityDescriptor{}))

	err := h.AddNativeCapability("wascc:keyvalue", "default", &noopHandle{}, types.CapabilityDescriptor{})
	require.Error(t, err)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindCapabilityProvider, kind)
}

type noopHandle struct{}

func (noopHandle) Configure(types.BindConfig) error                                  { return nil }
func (noopHandle) HandleCall(context.Context, string, []byte) ([]byte, error)         { return nil, nil }
func (noopHandle) Close() error                                                       { return nil }

var _ plugin.Handle = noopHandle{}

// Invariant 3: an unauthorized bind_actor returns an Authorization
// error and never enters the sandbox (no binding recorded).
func TestInvariant3_UnauthorizedBindNeverRecordsBinding(t *testing.T) {
	h, iss := newTestHost(t, "pong")
	pk := actorPK(1)
	token := issueToken(t, iss, pk, nil) // no capabilities granted
	_, err := h.AddActor(context.Background(), token, []byte("image"))
	require.NoError(t, err)

	require.NoError(t, h.AddNativeCapability("wascc:http_server", "default", &noopHandle{}, types.CapabilityDescriptor{}))

	err = h.BindActor(context.Background(), pk, "wascc:http_server", "default", nil)
	require.Error(t, err)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindAuthorization, kind)
	assert.Empty(t, h.reg.BindingsForActor(pk))
}

// Invariant 5: duplicate add_actor returns MiscHost.
func TestInvariant5_DuplicateActorRejected(t *testing.T) {
	h, iss := newTestHost(t, "pong")
	pk := actorPK(2)
	token := issueToken(t, iss, pk, nil)

	_, err := h.AddActor(context.Background(), token, []byte("image"))
	require.NoError(t, err)

	_, err = h.AddActor(context.Background(), token, []byte("image"))
	require.Error(t, err)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindMiscHost, kind)
}

// Invariant 6 (hot swap): an actor survives replace_actor with
// the same pk and continues serving invocations after the swap.
func TestHotSwap_ActorContinuesServingAfterReplace(t *testing.T) {
	h, iss := newTestHost(t, "v1")
	pk := actorPK(3)
	token := issueToken(t, iss, pk, nil)
	_, err := h.AddActor(context.Background(), token, []byte("v1-image"))
	require.NoError(t, err)

	out, err := h.CallActor(context.Background(), pk, "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(out))

	h.loader = &pingLoader{reply: "v2"}
	require.NoError(t, h.ReplaceActor(pk, token, []byte("v2-image")))

	out, err = h.CallActor(context.Background(), pk, "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(out))
}

func TestCallActor_NoSuchActor(t *testing.T) {
	h, _ := newTestHost(t, "pong")
	_, err := h.CallActor(context.Background(), actorPK(9), "ping", nil)
	require.Error(t, err)
}

func TestShutdown_DrainsAllWorkers(t *testing.T) {
	h, iss := newTestHost(t, "pong")
	pk := actorPK(4)
	token := issueToken(t, iss, pk, nil)
	_, err := h.AddActor(context.Background(), token, []byte("image"))
	require.NoError(t, err)
	require.NoError(t, h.AddNativeCapability("wascc:keyvalue", "default", &noopHandle{}, types.CapabilityDescriptor{}))

	done := make(chan struct{})
	go func() {
		h.Shutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete in time")
	}
}
