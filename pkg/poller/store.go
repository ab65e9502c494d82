package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Ramsey-B/fern/pkg/redis"
)

var (
	_ WatermarkStore = (*redis.Watermarks)(nil)
	_ WatermarkStore = (*MemoryWatermarks)(nil)
	_ Locker         = (*RedisLocker)(nil)
	_ Locker         = (*MemoryLocker)(nil)
)

// MemoryWatermarks keeps watermarks in process memory
type MemoryWatermarks struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryWatermarks creates an empty in-memory watermark store
func NewMemoryWatermarks() *MemoryWatermarks {
	return &MemoryWatermarks{values: map[string]string{}}
}

// Get returns the watermark of a table, or "" when none is stored
func (m *MemoryWatermarks) Get(_ context.Context, table string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[table], nil
}

// Set stores the watermark of a table
func (m *MemoryWatermarks) Set(_ context.Context, table, watermark string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[table] = watermark
	return nil
}

// MemoryLocker is a process-local Locker. Locks expire after their ttl.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewMemoryLocker creates an in-memory locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: map[string]time.Time{}, clock: time.Now}
}

// TryLock takes key for ttl or returns ErrLockNotAcquired
func (m *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	if expires, ok := m.held[key]; ok && now.Before(expires) {
		return nil, ErrLockNotAcquired
	}
	expires := now.Add(ttl)
	m.held[key] = expires

	return func(context.Context) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.held[key].Equal(expires) {
			delete(m.held, key)
		}
	}, nil
}

// RedisLocker adapts the redis distributed lock to Locker
type RedisLocker struct {
	locker *redis.Locker
}

// NewRedisLocker wraps a redis locker
func NewRedisLocker(locker *redis.Locker) *RedisLocker {
	return &RedisLocker{locker: locker}
}

// TryLock takes the redis lock for key
func (r *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context), error) {
	lock, err := r.locker.Acquire(ctx, key, ttl)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		return nil, ErrLockNotAcquired
	}
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) {
		// an expired lock is already gone
		_ = lock.Release(ctx)
	}, nil
}
