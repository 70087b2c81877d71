package middleware

import (
	"fmt"
	"sync"
	"testing"

	"github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orderRecorder appends its label to a shared log on every hook call,
// so the test can assert on call order.
type orderRecorder struct {
	label string
	log   *[]string
}

func (o *orderRecorder) BeforeInvoke(inv types.Invocation) (types.Invocation, error) {
	*o.log = append(*o.log, "before:"+o.label)
	return inv, nil
}

func (o *orderRecorder) AfterInvoke(inv types.Invocation, resp types.InvocationResponse) (types.InvocationResponse, error) {
	*o.log = append(*o.log, "after:"+o.label)
	return resp, nil
}

func (o *orderRecorder) AfterActorInvoke(resp types.InvocationResponse) (types.InvocationResponse, error) {
	*o.log = append(*o.log, "afterActor:"+o.label)
	return resp, nil
}

var _ Middleware = (*orderRecorder)(nil)

func TestChain_BeforeAndAfterRunInSameOrder(t *testing.T) {
	var log []string
	chain := NewChain(
		&orderRecorder{label: "1", log: &log},
		&orderRecorder{label: "2", log: &log},
		&orderRecorder{label: "3", log: &log},
	)

	inv, err := chain.RunBefore(types.Invocation{ID: "i1"})
	require.NoError(t, err)

	_, err = chain.RunAfter(inv, types.InvocationResponse{}, false)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"before:1", "before:2", "before:3",
		"after:1", "after:2", "after:3",
	}, log)
}

func TestChain_AfterActorInvokeRunsForActorTargets(t *testing.T) {
	var log []string
	chain := NewChain(&orderRecorder{label: "1", log: &log})

	_, err := chain.RunAfter(types.Invocation{}, types.InvocationResponse{}, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"after:1", "afterActor:1"}, log)
}

// rejecting short-circuits BeforeInvoke with an authorization error and
// must never be reached by downstream middleware.
type rejecting struct{ reached *bool }

func (r *rejecting) BeforeInvoke(inv types.Invocation) (types.Invocation, error) {
	return inv, errors.New(errors.KindAuthorization, "before", assertErr)
}
func (r *rejecting) AfterInvoke(inv types.Invocation, resp types.InvocationResponse) (types.InvocationResponse, error) {
	return resp, nil
}
func (r *rejecting) AfterActorInvoke(resp types.InvocationResponse) (types.InvocationResponse, error) {
	return resp, nil
}

var assertErr = errorString("denied")

type errorString string

func (e errorString) Error() string { return string(e) }

type neverReached struct{ hit *bool }

func (n *neverReached) BeforeInvoke(inv types.Invocation) (types.Invocation, error) {
	*n.hit = true
	return inv, nil
}
func (n *neverReached) AfterInvoke(inv types.Invocation, resp types.InvocationResponse) (types.InvocationResponse, error) {
	*n.hit = true
	return resp, nil
}
func (n *neverReached) AfterActorInvoke(resp types.InvocationResponse) (types.InvocationResponse, error) {
	*n.hit = true
	return resp, nil
}

func TestChain_BeforeInvokeShortCircuitsOnError(t *testing.T) {
	hit := false
	chain := NewChain(&rejecting{}, &neverReached{hit: &hit})

	_, err := chain.RunBefore(types.Invocation{})
	require.Error(t, err)
	kind, ok := errors.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindAuthorization, kind)
	assert.False(t, hit, "downstream middleware must not run after a short-circuit")
}

func TestMetricsMiddleware_RecordsWithoutError(t *testing.T) {
	m := NewMetricsMiddleware()
	inv, err := m.BeforeInvoke(types.Invocation{ID: "i1", Operation: "ping"})
	require.NoError(t, err)

	resp, err := m.AfterInvoke(inv, types.InvocationResponse{Msg: []byte("pong")})
	require.NoError(t, err)
	assert.Equal(t, "pong", string(resp.Msg))

	resp, err = m.AfterInvoke(inv, types.InvocationResponse{Error: "boom"})
	require.NoError(t, err)
	assert.Equal(t, "boom", resp.Error)
}

// A single Host's Chain (and so its MetricsMiddleware) is shared
// across every actor and provider worker goroutine. This exercises
// concurrent BeforeInvoke/AfterInvoke pairs the way the race
// detector would under `go test -race`.
func TestMetricsMiddleware_ConcurrentInvocationsDoNotRace(t *testing.T) {
	m := NewMetricsMiddleware()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("worker-%d", n)
			inv, err := m.BeforeInvoke(types.Invocation{ID: id, Operation: "ping"})
			assert.NoError(t, err)
			_, err = m.AfterInvoke(inv, types.InvocationResponse{Msg: []byte("pong")})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
}
