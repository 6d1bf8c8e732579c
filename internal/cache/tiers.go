package cache

import (
	"context"
	"sync"
	"time"

	"github.com/akolanti/RagAPI/internal/data/redisStore"
)

// RedisCache is the volatile tier.
type RedisCache struct {
	store *redisStore.Store
}

func NewRedisCache(store *redisStore.Store) *RedisCache {
	return &RedisCache{store: store}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.store.Get(ctx, key)
	if c.store.IsNil(err) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisCache) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	_, err := c.store.SetNX(ctx, key, value, ttl)
	return err
}

// DurableBackend is what the durable tier needs from the SQL store.
type DurableBackend interface {
	CacheGet(ctx context.Context, key string) (string, bool, error)
	CachePut(ctx context.Context, key string, value string, ttl time.Duration) error
}

// DurableCache survives redis restarts; entries expire by expires_at checked
// on read.
type DurableCache struct {
	backend DurableBackend
}

func NewDurableCache(backend DurableBackend) *DurableCache {
	return &DurableCache{backend: backend}
}

func (c *DurableCache) Get(ctx context.Context, key string) (string, bool, error) {
	return c.backend.CacheGet(ctx, key)
}

func (c *DurableCache) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.backend.CachePut(ctx, key, value, ttl)
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryCache backs tests and no-redis deployments. Put keeps first-writer
// semantics like the other tiers.
type MemoryCache struct {
	mu      *sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		mu:      new(sync.Mutex),
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, found := c.entries[key]
	if !found {
		return "", false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (c *MemoryCache) Put(ctx context.Context, key string, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, found := c.entries[key]; found && time.Now().Before(entry.expiresAt) {
		return nil
	}
	c.entries[key] = memoryEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}
