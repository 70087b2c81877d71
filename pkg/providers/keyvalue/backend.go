package keyvalue

import (
	"context"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// memBackend is the in-process fallback used when no REDIS_URL is
// configured. Suitable for local development and the scenario tests.
type memBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]string)}
}

func (m *memBackend) get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBackend) set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memBackend) add(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, _ := strconv.ParseInt(m.data[key], 10, 64)
	cur += delta
	m.data[key] = strconv.FormatInt(cur, 10)
	return cur, nil
}

func (m *memBackend) contains(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memBackend) close() error { return nil }

// redisBackend delegates to a real Redis server.
type redisBackend struct {
	client *redis.Client
}

func (r *redisBackend) get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (r *redisBackend) set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *redisBackend) add(ctx context.Context, key string, delta int64) (int64, error) {
	return r.client.IncrBy(ctx, key, delta).Result()
}

func (r *redisBackend) contains(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *redisBackend) close() error {
	return r.client.Close()
}
