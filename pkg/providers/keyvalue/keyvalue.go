// Package keyvalue implements the wascc:keyvalue reference capability
// provider: Get/Set/Atomic::Add operations backed by Redis when a
// REDIS_URL config value is supplied, or an in-process map otherwise.
package keyvalue

import (
	"context"
	"strconv"
	"sync"

	"github.com/lattice-run/lattice-host/pkg/errors"
	"github.com/lattice-run/lattice-host/pkg/plugin"
	"github.com/lattice-run/lattice-host/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Operation names the provider answers on its subject.
const (
	OpGet        = "Get"
	OpSet        = "Set"
	OpAtomicAdd  = "Atomic::Add"
	OpContains   = "Contains"
)

// backend abstracts the two storage strategies so Provider's dispatch
// logic doesn't care which one is active.
type backend interface {
	get(ctx context.Context, key string) (string, bool, error)
	set(ctx context.Context, key, value string) error
	add(ctx context.Context, key string, delta int64) (int64, error)
	contains(ctx context.Context, key string) (bool, error)
	close() error
}

// Provider is one wascc:keyvalue binding.
type Provider struct {
	mu sync.Mutex
	be backend
}

var _ plugin.Handle = (*Provider)(nil)

// New constructs an unconfigured Provider; Configure selects the backend.
func New() *Provider {
	return &Provider{}
}

// Configure selects Redis (when REDIS_URL is set) or the in-memory
// fallback.
func (p *Provider) Configure(cfg types.BindConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.be != nil {
		_ = p.be.close()
	}
	if url := cfg.Values["REDIS_URL"]; url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return err
		}
		p.be = &redisBackend{client: redis.NewClient(opts)}
		return nil
	}
	p.be = newMemBackend()
	return nil
}

// HandleCall dispatches Get/Set/Atomic::Add/Contains against the
// active backend.
func (p *Provider) HandleCall(ctx context.Context, operation string, payload []byte) ([]byte, error) {
	p.mu.Lock()
	be := p.be
	p.mu.Unlock()
	if be == nil {
		return nil, errors.Newf(errors.KindCapabilityProvider, "keyvalue", "provider not configured")
	}

	switch operation {
	case OpGet:
		v, ok, err := be.get(ctx, string(payload))
		if err != nil {
			return nil, errors.New(errors.KindCapabilityProvider, "keyvalue.get", err)
		}
		if !ok {
			return nil, nil
		}
		return []byte(v), nil
	case OpSet:
		key, value, err := splitKV(payload)
		if err != nil {
			return nil, errors.New(errors.KindSerialization, "keyvalue.set", err)
		}
		if err := be.set(ctx, key, value); err != nil {
			return nil, errors.New(errors.KindCapabilityProvider, "keyvalue.set", err)
		}
		return nil, nil
	case OpAtomicAdd:
		key, deltaStr, err := splitKV(payload)
		if err != nil {
			return nil, errors.New(errors.KindSerialization, "keyvalue.add", err)
		}
		delta, err := strconv.ParseInt(deltaStr, 10, 64)
		if err != nil {
			return nil, errors.New(errors.KindSerialization, "keyvalue.add", err)
		}
		total, err := be.add(ctx, key, delta)
		if err != nil {
			return nil, errors.New(errors.KindCapabilityProvider, "keyvalue.add", err)
		}
		return []byte(strconv.FormatInt(total, 10)), nil
	case OpContains:
		ok, err := be.contains(ctx, string(payload))
		if err != nil {
			return nil, errors.New(errors.KindCapabilityProvider, "keyvalue.contains", err)
		}
		if ok {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	default:
		return nil, errors.Newf(errors.KindCapabilityProvider, "keyvalue", "unsupported operation %q", operation)
	}
}

// Close releases the active backend's resources.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.be == nil {
		return nil
	}
	return p.be.close()
}

// splitKV splits a "key\x00value" payload, the convention this
// provider uses for two-field operation payloads.
func splitKV(payload []byte) (string, string, error) {
	for i, b := range payload {
		if b == 0 {
			return string(payload[:i]), string(payload[i+1:]), nil
		}
	}
	return "", "", errors.Newf(errors.KindSerialization, "keyvalue", "payload missing NUL-separated value")
}
