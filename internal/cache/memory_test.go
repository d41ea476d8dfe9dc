package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "chatbot-cache/internal/common/errors"
)

func newTestMemoryCache(overrides func(*Config)) *MemoryCache {
	config := DefaultConfig()
	config.KeyPrefix = ""
	if overrides != nil {
		overrides(&config)
	}
	return NewMemoryCache(config)
}

func TestMemoryCache_SetGet(t *testing.T) {
	c := newTestMemoryCache(nil)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "user:1", "alice", KeepDefault))

	value, ok := c.Get(ctx, "user:1")
	require.True(t, ok)
	assert.Equal(t, "alice", value)

	_, ok = c.Get(ctx, "user:2")
	assert.False(t, ok)
}

func TestMemoryCache_LRUEviction(t *testing.T) {
	c := newTestMemoryCache(func(cfg *Config) { cfg.MaxSize = 3 })
	ctx := context.Background()

	c.Set(ctx, "a", 1, KeepDefault)
	c.Set(ctx, "b", 2, KeepDefault)
	c.Set(ctx, "c", 3, KeepDefault)
	c.Set(ctx, "d", 4, KeepDefault)

	assert.False(t, c.Exists(ctx, "a"))
	assert.True(t, c.Exists(ctx, "b"))
	assert.True(t, c.Exists(ctx, "c"))
	assert.True(t, c.Exists(ctx, "d"))
}

func TestMemoryCache_LRURecencyOnGet(t *testing.T) {
	c := newTestMemoryCache(func(cfg *Config) { cfg.MaxSize = 3 })
	ctx := context.Background()

	c.Set(ctx, "a", 1, KeepDefault)
	c.Set(ctx, "b", 2, KeepDefault)
	c.Set(ctx, "c", 3, KeepDefault)

	// Reading a makes b the least recently used.
	_, ok := c.Get(ctx, "a")
	require.True(t, ok)

	c.Set(ctx, "d", 4, KeepDefault)

	assert.True(t, c.Exists(ctx, "a"))
	assert.False(t, c.Exists(ctx, "b"))
	assert.True(t, c.Exists(ctx, "c"))
	assert.True(t, c.Exists(ctx, "d"))
}

func TestMemoryCache_TTLEviction(t *testing.T) {
	c := newTestMemoryCache(func(cfg *Config) {
		cfg.MaxSize = 3
		cfg.Policy = EvictTTL
	})
	ctx := context.Background()

	c.Set(ctx, "soon", 1, time.Minute)
	c.Set(ctx, "later", 2, time.Hour)
	c.Set(ctx, "forever", 3, NoExpiration)
	c.Set(ctx, "new", 4, time.Hour)

	assert.False(t, c.Exists(ctx, "soon"))
	assert.True(t, c.Exists(ctx, "later"))
	assert.True(t, c.Exists(ctx, "forever"))
	assert.True(t, c.Exists(ctx, "new"))
}

func TestMemoryCache_RandomEviction(t *testing.T) {
	c := newTestMemoryCache(func(cfg *Config) {
		cfg.MaxSize = 5
		cfg.Policy = EvictRandom
	})
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		c.Set(ctx, key, key, KeepDefault)
	}

	assert.Len(t, c.Keys(ctx, ""), 5)
	assert.Equal(t, int64(2), c.Stats().Evictions)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := newTestMemoryCache(nil)
	ctx := context.Background()

	require.True(t, c.Set(ctx, "ephemeral", "v", 20*time.Millisecond))
	require.True(t, c.Exists(ctx, "ephemeral"))

	time.Sleep(40 * time.Millisecond)

	_, ok := c.Get(ctx, "ephemeral")
	assert.False(t, ok)
	assert.False(t, c.Exists(ctx, "ephemeral"))
}

func TestMemoryCache_Delete(t *testing.T) {
	c := newTestMemoryCache(nil)
	ctx := context.Background()

	c.Set(ctx, "k", "v", KeepDefault)
	assert.True(t, c.Delete(ctx, "k"))
	assert.False(t, c.Delete(ctx, "k"))
	assert.False(t, c.Exists(ctx, "k"))
}

func TestMemoryCache_Clear(t *testing.T) {
	c := newTestMemoryCache(nil)
	ctx := context.Background()

	c.Set(ctx, "a", 1, KeepDefault)
	c.Set(ctx, "b", 2, KeepDefault)

	require.True(t, c.Clear(ctx))
	assert.Empty(t, c.Keys(ctx, ""))
}

func TestMemoryCache_KeysPatterns(t *testing.T) {
	c := newTestMemoryCache(nil)
	ctx := context.Background()

	c.Set(ctx, "user:1", 1, KeepDefault)
	c.Set(ctx, "user:2", 2, KeepDefault)
	c.Set(ctx, "session:1", 3, KeepDefault)

	assert.Equal(t, []string{"session:1", "user:1", "user:2"}, c.Keys(ctx, ""))
	assert.Equal(t, []string{"user:1", "user:2"}, c.Keys(ctx, "user:*"))
	assert.Equal(t, []string{"session:1", "user:1"}, c.Keys(ctx, ":1"))
	assert.Empty(t, c.Keys(ctx, "missing"))
}

func TestMemoryCache_MGetMSet(t *testing.T) {
	c := newTestMemoryCache(nil)
	ctx := context.Background()

	ok := c.MSet(ctx, map[string]interface{}{"a": 1, "b": 2}, KeepDefault)
	require.True(t, ok)

	values := c.MGet(ctx, "a", "b", "missing")
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, values)
}

func TestMemoryCache_Increment(t *testing.T) {
	ctx := context.Background()

	t.Run("creates then adds", func(t *testing.T) {
		c := newTestMemoryCache(nil)

		n, err := c.Increment(ctx, "ctr", 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		n, err = c.Increment(ctx, "ctr", 3)
		require.NoError(t, err)
		assert.Equal(t, int64(8), n)
	})

	t.Run("fresh counter gets default ttl", func(t *testing.T) {
		c := newTestMemoryCache(nil)

		_, err := c.Increment(ctx, "ctr", 1)
		require.NoError(t, err)

		d, ok := c.TTL(ctx, "ctr")
		require.True(t, ok)
		assert.Greater(t, d, time.Duration(0))
	})

	t.Run("numeric string", func(t *testing.T) {
		c := newTestMemoryCache(nil)

		c.Set(ctx, "ctr", "10", KeepDefault)
		n, err := c.Increment(ctx, "ctr", 5)
		require.NoError(t, err)
		assert.Equal(t, int64(15), n)
	})

	t.Run("not numeric", func(t *testing.T) {
		c := newTestMemoryCache(nil)

		c.Set(ctx, "name", "alice", KeepDefault)
		_, err := c.Increment(ctx, "name", 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNotNumeric))
	})

	t.Run("invalid key", func(t *testing.T) {
		c := newTestMemoryCache(nil)

		_, err := c.Increment(ctx, "has space", 1)
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation))
	})
}

func TestMemoryCache_ExpireAndTTL(t *testing.T) {
	c := newTestMemoryCache(nil)
	ctx := context.Background()

	c.Set(ctx, "k", "v", NoExpiration)

	d, ok := c.TTL(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, NoTTL, d)

	require.True(t, c.Expire(ctx, "k", time.Minute))
	d, ok = c.TTL(ctx, "k")
	require.True(t, ok)
	assert.Greater(t, d, 50*time.Second)

	require.True(t, c.Expire(ctx, "k", NoExpiration))
	d, ok = c.TTL(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, NoTTL, d)

	assert.False(t, c.Expire(ctx, "missing", time.Minute))

	_, ok = c.TTL(ctx, "missing")
	assert.False(t, ok)
}

func TestMemoryCache_InvalidKeys(t *testing.T) {
	c := newTestMemoryCache(nil)
	ctx := context.Background()

	long := make([]byte, MaxKeyLength+1)
	for i := range long {
		long[i] = 'x'
	}

	for _, key := range []string{"", "has space", "has\ttab", string(long)} {
		assert.False(t, c.Set(ctx, key, "v", KeepDefault))
		_, ok := c.Get(ctx, key)
		assert.False(t, ok)
		assert.False(t, c.Exists(ctx, key))
		assert.False(t, c.Delete(ctx, key))
	}
}

func TestMemoryCache_Disabled(t *testing.T) {
	c := newTestMemoryCache(func(cfg *Config) { cfg.Disabled = true })
	ctx := context.Background()

	assert.False(t, c.Set(ctx, "k", "v", KeepDefault))
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.True(t, c.Clear(ctx))
	assert.Nil(t, c.Keys(ctx, ""))

	n, err := c.Increment(ctx, "ctr", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	health := c.HealthCheck(ctx)
	assert.Equal(t, StatusDisabled, health.Status)
}

func TestMemoryCache_Cleanup(t *testing.T) {
	c := newTestMemoryCache(nil)
	ctx := context.Background()

	c.Set(ctx, "stay", 1, time.Hour)
	c.Set(ctx, "go1", 2, 10*time.Millisecond)
	c.Set(ctx, "go2", 3, 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 2, c.Cleanup())
	assert.Equal(t, 0, c.Cleanup())
	assert.Equal(t, []string{"stay"}, c.Keys(ctx, ""))
}

func TestMemoryCache_Stats(t *testing.T) {
	c := newTestMemoryCache(func(cfg *Config) { cfg.MaxSize = 2 })
	ctx := context.Background()

	c.Set(ctx, "a", 1, KeepDefault)
	c.Get(ctx, "a")
	c.Get(ctx, "a")
	c.Get(ctx, "missing")
	c.Set(ctx, "b", 2, KeepDefault)
	c.Set(ctx, "c", 3, KeepDefault)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 2, stats.Entries)
	assert.InDelta(t, 2.0/3.0, stats.HitRate(), 1e-9)
}

func TestMemoryCache_StatsDisabled(t *testing.T) {
	c := newTestMemoryCache(func(cfg *Config) { cfg.EnableStats = false })
	ctx := context.Background()

	c.Set(ctx, "a", 1, KeepDefault)
	c.Get(ctx, "a")
	c.Get(ctx, "missing")

	stats := c.Stats()
	assert.Zero(t, stats.Hits)
	assert.Zero(t, stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestMemoryCache_HealthCheck(t *testing.T) {
	c := newTestMemoryCache(nil)
	ctx := context.Background()

	c.Set(ctx, "a", 1, KeepDefault)

	health := c.HealthCheck(ctx)
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Equal(t, BackendMemory, health.Backend)
	assert.Equal(t, 1, health.Detail["entries"])
}
