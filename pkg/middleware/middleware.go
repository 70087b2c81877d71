// Package middleware implements the ordered pre/post hook chain that
// wraps every invocation dispatched by a lifecycle worker.
package middleware

import "github.com/lattice-run/lattice-host/pkg/types"

// Middleware is a policy/telemetry hook. Unlike most chain
// abstractions, after_* runs in the SAME order as before_* — this is
// unusual (most chains reverse) and is preserved deliberately per
// spec.md §4.3 and §9.
type Middleware interface {
	// BeforeInvoke may rewrite the envelope before it reaches the
	// sandbox. Returning an error short-circuits the chain; the
	// sandbox is never entered.
	BeforeInvoke(inv types.Invocation) (types.Invocation, error)

	// AfterInvoke may rewrite the response after the sandbox (or an
	// earlier hook) has produced one.
	AfterInvoke(inv types.Invocation, resp types.InvocationResponse) (types.InvocationResponse, error)

	// AfterActorInvoke runs only when the invocation's target is an
	// actor (not a capability provider).
	AfterActorInvoke(resp types.InvocationResponse) (types.InvocationResponse, error)
}

// Chain runs an ordered list of Middleware.
type Chain struct {
	items []Middleware
}

// NewChain builds a Chain from ms in registration order.
func NewChain(ms ...Middleware) *Chain {
	return &Chain{items: append([]Middleware(nil), ms...)}
}

// Add appends a middleware to the end of the chain.
func (c *Chain) Add(m Middleware) {
	c.items = append(c.items, m)
}

// RunBefore runs BeforeInvoke on every middleware in registration
// order, short-circuiting on the first error.
func (c *Chain) RunBefore(inv types.Invocation) (types.Invocation, error) {
	for _, m := range c.items {
		var err error
		inv, err = m.BeforeInvoke(inv)
		if err != nil {
			return inv, err
		}
	}
	return inv, nil
}

// RunAfter runs AfterInvoke, and — when isActor is true — AfterActorInvoke,
// on every middleware in the SAME registration order as RunBefore,
// short-circuiting on the first error.
func (c *Chain) RunAfter(inv types.Invocation, resp types.InvocationResponse, isActor bool) (types.InvocationResponse, error) {
	for _, m := range c.items {
		var err error
		resp, err = m.AfterInvoke(inv, resp)
		if err != nil {
			return resp, err
		}
		if isActor {
			resp, err = m.AfterActorInvoke(resp)
			if err != nil {
				return resp, err
			}
		}
	}
	return resp, nil
}
