package cache

import (
	"context"
	"time"
)

// LoadFunc computes a value on a cache miss.
type LoadFunc func(ctx context.Context) (interface{}, error)

// GetOrSet returns the cached value for key, computing and storing it on a
// miss. The store is best-effort: a failed Set still returns the computed
// value. Concurrent misses on the same key may each run load; use the
// manager's single-flight mode when that matters.
func GetOrSet(ctx context.Context, c Cache, key string, ttl time.Duration, load LoadFunc) (interface{}, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}

	value, err := load(ctx)
	if err != nil {
		return nil, err
	}

	c.Set(ctx, key, value, ttl)
	return value, nil
}
