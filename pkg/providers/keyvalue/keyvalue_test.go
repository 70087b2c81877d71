package keyvalue

import (
	"context"
	"testing"

	"github.com/lattice-run/lattice-host/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configured(t *testing.T) *Provider {
	p := New()
	require.NoError(t, p.Configure(types.BindConfig{Module: "M1"}))
	return p
}

func TestProvider_SetThenGet(t *testing.T) {
	p := configured(t)
	_, err := p.HandleCall(context.Background(), OpSet, []byte("k\x00v1"))
	require.NoError(t, err)

	out, err := p.HandleCall(context.Background(), OpGet, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(out))
}

func TestProvider_GetMissingKeyReturnsNil(t *testing.T) {
	p := configured(t)
	out, err := p.HandleCall(context.Background(), OpGet, []byte("missing"))
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestProvider_AtomicAddAccumulates(t *testing.T) {
	p := configured(t)
	for i := 0; i < 3; i++ {
		out, err := p.HandleCall(context.Background(), OpAtomicAdd, []byte("counter\x001"))
		require.NoError(t, err)
		if i == 2 {
			assert.Equal(t, "3", string(out))
		}
	}
}

func TestProvider_Contains(t *testing.T) {
	p := configured(t)
	out, err := p.HandleCall(context.Background(), OpContains, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "false", string(out))

	_, err = p.HandleCall(context.Background(), OpSet, []byte("k\x00v"))
	require.NoError(t, err)
	out, err = p.HandleCall(context.Background(), OpContains, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "true", string(out))
}

func TestProvider_UnsupportedOperation(t *testing.T) {
	p := configured(t)
	_, err := p.HandleCall(context.Background(), "Delete", nil)
	require.Error(t, err)
}

func TestProvider_NotConfiguredFailsFast(t *testing.T) {
	p := New()
	_, err := p.HandleCall(context.Background(), OpGet, []byte("k"))
	require.Error(t, err)
}
