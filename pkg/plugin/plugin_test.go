package plugin

import (
	"context"
	"testing"

	"github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	configured types.BindConfig
	closed     bool
}

func (f *fakeHandle) Configure(cfg types.BindConfig) error {
	f.configured = cfg
	return nil
}

func (f *fakeHandle) HandleCall(ctx context.Context, operation string, payload []byte) ([]byte, error) {
	return append([]byte(operation+":"), payload...), nil
}

func (f *fakeHandle) Close() error {
	f.closed = true
	return nil
}

func TestManager_RegisterRejectsDuplicate(t *testing.T) {
	m := NewManager()
	h := &fakeHandle{}
	assert.True(t, m.Register("wasmcc:keyvalue", "default", h))
	assert.False(t, m.Register("wasmcc:keyvalue", "default", h))

	got, ok := m.Lookup("wasmcc:keyvalue", "default")
	require.True(t, ok)
	assert.Same(t, h, got)

	m.Remove("wasmcc:keyvalue", "default")
	_, ok = m.Lookup("wasmcc:keyvalue", "default")
	assert.False(t, ok)
}

func TestModuleAdapter_BindActorConfiguresHandle(t *testing.T) {
	h := &fakeHandle{}
	a := &ModuleAdapter{Handle: h}

	payload, err := EncodeBindConfig(types.BindConfig{Module: "M1", Values: map[string]string{"port": "8080"}})
	require.NoError(t, err)

	_, err = a.Call(context.Background(), types.OpBindActor, payload)
	require.NoError(t, err)
	assert.Equal(t, "M1", h.configured.Module)
	assert.Equal(t, "8080", h.configured.Values["port"])
}

func TestModuleAdapter_OtherOperationsRouteToHandleCall(t *testing.T) {
	a := &ModuleAdapter{Handle: &fakeHandle{}}
	out, err := a.Call(context.Background(), "get", []byte("key"))
	require.NoError(t, err)
	assert.Equal(t, "get:key", string(out))
}

type failingHandle struct{ fakeHandle }

func (f *failingHandle) HandleCall(ctx context.Context, operation string, payload []byte) ([]byte, error) {
	return nil, assertErr
}

type errString string

func (e errString) Error() string { return string(e) }

var assertErr = errString("provider exploded")

func TestModuleAdapter_HandleCallErrorBecomesCapabilityProviderKind(t *testing.T) {
	a := &ModuleAdapter{Handle: &failingHandle{}}
	_, err := a.Call(context.Background(), "get", nil)
	require.Error(t, err)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindCapabilityProvider, kind)
}

func TestModuleAdapter_Close(t *testing.T) {
	h := &fakeHandle{}
	a := &ModuleAdapter{Handle: h}
	require.NoError(t, a.Close())
	assert.True(t, h.closed)
}
