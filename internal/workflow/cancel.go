package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CancelRegistry carries cancellation signals from the request boundary to
// running engines, keyed by run id. Signalling is idempotent.
type CancelRegistry interface {
	Signal(ctx context.Context, runID string) error
	Signalled(ctx context.Context, runID string) (bool, error)
	Clear(ctx context.Context, runID string) error
}

// MemoryCancelRegistry is a process-local registry for single-node
// deployments and tests.
type MemoryCancelRegistry struct {
	mu    sync.RWMutex
	flags map[string]struct{}
}

// NewMemoryCancelRegistry builds an empty in-memory registry.
func NewMemoryCancelRegistry() *MemoryCancelRegistry {
	return &MemoryCancelRegistry{flags: make(map[string]struct{})}
}

func (r *MemoryCancelRegistry) Signal(_ context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[runID] = struct{}{}
	return nil
}

func (r *MemoryCancelRegistry) Signalled(_ context.Context, runID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.flags[runID]
	return ok, nil
}

func (r *MemoryCancelRegistry) Clear(_ context.Context, runID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flags, runID)
	return nil
}

// RedisCancelRegistry shares cancellation signals across nodes through Redis
// keys with a TTL, so stale flags for runs that never observe them expire on
// their own.
type RedisCancelRegistry struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCancelRegistry builds a registry over rdb. ttl bounds how long an
// unobserved signal survives; it should comfortably exceed the run timeout.
func NewRedisCancelRegistry(rdb *redis.Client, ttl time.Duration) *RedisCancelRegistry {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCancelRegistry{rdb: rdb, ttl: ttl}
}

func cancelKey(runID string) string { return "report:cancel:" + runID }

func (r *RedisCancelRegistry) Signal(ctx context.Context, runID string) error {
	return r.rdb.Set(ctx, cancelKey(runID), "1", r.ttl).Err()
}

func (r *RedisCancelRegistry) Signalled(ctx context.Context, runID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, cancelKey(runID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisCancelRegistry) Clear(ctx context.Context, runID string) error {
	return r.rdb.Del(ctx, cancelKey(runID)).Err()
}
