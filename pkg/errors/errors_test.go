package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostError_Error(t *testing.T) {
	e := New(KindAuthorization, "bind_actor", errors.New("denied"))
	assert.Equal(t, "bind_actor: authorization: denied", e.Error())
}

func TestHostError_ErrorNilCause(t *testing.T) {
	e := New(KindMiscHost, "remove_actor", nil)
	assert.Equal(t, "remove_actor: misc_host", e.Error())
}

func TestHostError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	e := New(KindIO, "invoke", cause)
	assert.Same(t, cause, e.Unwrap())
	assert.True(t, errors.Is(e, cause))
}

func TestHostError_IsByKind(t *testing.T) {
	a := New(KindCapabilityProvider, "bind_actor", errors.New("x"))
	b := New(KindCapabilityProvider, "add_native_capability", errors.New("y"))
	c := New(KindMiscHost, "remove_actor", nil)

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestKindOf(t *testing.T) {
	e := Newf(KindNoSuchSubscriber, "invoke", "no subscribers for %s", "wasmbus.actor.M123")
	kind, ok := KindOf(e)
	assert.True(t, ok)
	assert.Equal(t, KindNoSuchSubscriber, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
}
