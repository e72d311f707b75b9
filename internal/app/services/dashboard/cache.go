package dashboard

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/happy-hops/choperia/internal/app/domain/dashboard"
)

// DefaultCacheKey is the Redis key holding the shared metrics snapshot.
const DefaultCacheKey = "choperia:dashboard:metrics"

// Cache stores the latest metrics snapshot.
type Cache interface {
	Get(ctx context.Context) (dashboard.Metrics, bool, error)
	Set(ctx context.Context, m dashboard.Metrics, ttl time.Duration) error
}

// MemoryCache keeps the snapshot in process.
type MemoryCache struct {
	mu      sync.RWMutex
	value   dashboard.Metrics
	expires time.Time
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{now: time.Now}
}

func (c *MemoryCache) Get(context.Context) (dashboard.Metrics, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.expires.IsZero() || !c.now().Before(c.expires) {
		return dashboard.Metrics{}, false, nil
	}
	return c.value, true, nil
}

func (c *MemoryCache) Set(_ context.Context, m dashboard.Metrics, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = m
	c.expires = c.now().Add(ttl)
	return nil
}

// RedisCache shares the snapshot between instances.
type RedisCache struct {
	rdb *redis.Client
	key string
}

// NewRedisCache creates a cache under key (DefaultCacheKey when empty).
func NewRedisCache(rdb *redis.Client, key string) *RedisCache {
	if key == "" {
		key = DefaultCacheKey
	}
	return &RedisCache{rdb: rdb, key: key}
}

func (c *RedisCache) Get(ctx context.Context) (dashboard.Metrics, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return dashboard.Metrics{}, false, nil
	}
	if err != nil {
		return dashboard.Metrics{}, false, err
	}
	var m dashboard.Metrics
	if err := json.Unmarshal(raw, &m); err != nil {
		return dashboard.Metrics{}, false, err
	}
	return m, true, nil
}

func (c *RedisCache) Set(ctx context.Context, m dashboard.Metrics, ttl time.Duration) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key, data, ttl).Err()
}
