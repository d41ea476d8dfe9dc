package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatbot-cache/internal/cache"
)

var cacheEnvVars = []string{
	"CACHE_BACKEND", "CACHE_DEFAULT_TTL", "CACHE_MAX_SIZE",
	"CACHE_EVICTION_POLICY", "CACHE_KEY_PREFIX", "CACHE_DISABLED",
	"CACHE_ENABLE_STATS", "CACHE_L1_RATIO", "CACHE_PROMOTION_THRESHOLD",
	"CACHE_SWEEP_SCHEDULE", "CACHE_SINGLE_FLIGHT",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
	"REDIS_MAX_RETRIES", "REDIS_OP_TIMEOUT", "LOG_LEVEL",
}

func clearTestEnvVars(t *testing.T) {
	for _, key := range cacheEnvVars {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearTestEnvVars(t)

	cfg := Load()

	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, time.Hour, cfg.DefaultTTL)
	assert.Equal(t, 1000, cfg.MaxSize)
	assert.Equal(t, "lru", cfg.EvictionPolicy)
	assert.Equal(t, "cache", cfg.KeyPrefix)
	assert.False(t, cfg.Disabled)
	assert.True(t, cfg.EnableStats)
	assert.InDelta(t, 0.1, cfg.L1Ratio, 1e-9)
	assert.Equal(t, 2, cfg.PromotionThreshold)
	assert.Equal(t, "localhost:6379", cfg.RedisAddress)
	assert.Equal(t, 3, cfg.RedisMaxRetries)
	assert.Equal(t, 2*time.Second, cfg.RedisOpTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("CACHE_BACKEND", "multi_tier")
	t.Setenv("CACHE_DEFAULT_TTL", "30m")
	t.Setenv("CACHE_MAX_SIZE", "500")
	t.Setenv("CACHE_EVICTION_POLICY", "ttl")
	t.Setenv("CACHE_DISABLED", "true")
	t.Setenv("CACHE_L1_RATIO", "0.25")
	t.Setenv("REDIS_ADDRESS", "redis.internal:6380")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()

	assert.Equal(t, "multi_tier", cfg.Backend)
	assert.Equal(t, 30*time.Minute, cfg.DefaultTTL)
	assert.Equal(t, 500, cfg.MaxSize)
	assert.Equal(t, "ttl", cfg.EvictionPolicy)
	assert.True(t, cfg.Disabled)
	assert.InDelta(t, 0.25, cfg.L1Ratio, 1e-9)
	assert.Equal(t, "redis.internal:6380", cfg.RedisAddress)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("CACHE_MAX_SIZE", "lots")
	t.Setenv("CACHE_DEFAULT_TTL", "soon")
	t.Setenv("CACHE_DISABLED", "kinda")

	cfg := Load()

	assert.Equal(t, 1000, cfg.MaxSize)
	assert.Equal(t, time.Hour, cfg.DefaultTTL)
	assert.False(t, cfg.Disabled)
}

func TestValidate(t *testing.T) {
	valid := func(t *testing.T) *Config {
		clearTestEnvVars(t)
		return Load()
	}

	t.Run("defaults validate", func(t *testing.T) {
		require.NoError(t, valid(t).Validate())
	})

	t.Run("bad backend", func(t *testing.T) {
		cfg := valid(t)
		cfg.Backend = "memcached"
		assert.ErrorContains(t, cfg.Validate(), "CACHE_BACKEND")
	})

	t.Run("bad eviction policy", func(t *testing.T) {
		cfg := valid(t)
		cfg.EvictionPolicy = "fifo"
		assert.ErrorContains(t, cfg.Validate(), "CACHE_EVICTION_POLICY")
	})

	t.Run("negative max size", func(t *testing.T) {
		cfg := valid(t)
		cfg.MaxSize = -1
		assert.ErrorContains(t, cfg.Validate(), "CACHE_MAX_SIZE")
	})

	t.Run("ratio out of range", func(t *testing.T) {
		cfg := valid(t)
		cfg.L1Ratio = 1.5
		assert.ErrorContains(t, cfg.Validate(), "CACHE_L1_RATIO")
	})

	t.Run("redis address required for remote backends", func(t *testing.T) {
		cfg := valid(t)
		cfg.Backend = "redis"
		cfg.RedisAddress = ""
		assert.ErrorContains(t, cfg.Validate(), "REDIS_ADDRESS")
	})

	t.Run("redis db range", func(t *testing.T) {
		cfg := valid(t)
		cfg.Backend = "multi_tier"
		cfg.RedisDB = 42
		assert.ErrorContains(t, cfg.Validate(), "REDIS_DB")
	})
}

func TestConversions(t *testing.T) {
	clearTestEnvVars(t)
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("CACHE_KEY_PREFIX", "chat")
	t.Setenv("REDIS_MAX_RETRIES", "5")

	cfg := Load()

	cc := cfg.CacheConfig()
	assert.Equal(t, "chat", cc.KeyPrefix)
	assert.Equal(t, cache.EvictLRU, cc.Policy)
	assert.Equal(t, time.Hour, cc.DefaultTTL)

	rc := cfg.RedisConfig()
	assert.Equal(t, "localhost:6379", rc.Address)
	assert.Equal(t, 5, rc.MaxConnectRetries)
}
