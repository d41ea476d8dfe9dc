// Package config provides configuration management for the caching layer.
// It loads settings from environment variables (optionally seeded from a
// .env file) with sensible defaults and validates them so the process
// starts safely.
//
// Environment Variables:
//
// Cache Settings:
//   - CACHE_BACKEND: Backend selector - "memory", "redis" or "multi_tier" (default: memory)
//   - CACHE_DEFAULT_TTL: Default entry lifetime, Go duration syntax; "0" means no expiry (default: 1h)
//   - CACHE_MAX_SIZE: Entry count bound for the in-process tier, 0 = unbounded (default: 1000)
//   - CACHE_EVICTION_POLICY: "lru", "ttl" or "random" (default: lru)
//   - CACHE_KEY_PREFIX: Namespace prefix for all keys (default: cache)
//   - CACHE_DISABLED: Short-circuit every cache operation (default: false)
//   - CACHE_ENABLE_STATS: Record hit/miss counters (default: true)
//   - CACHE_L1_RATIO: Multi-tier L1 size as a fraction of CACHE_MAX_SIZE (default: 0.1)
//   - CACHE_PROMOTION_THRESHOLD: L2 hits before promotion into L1 (default: 2)
//   - CACHE_SWEEP_SCHEDULE: Cron spec for the expired-entry sweep (default: @every 5m)
//   - CACHE_SINGLE_FLIGHT: Dedupe concurrent GetOrSet loads per key (default: false)
//
// Redis Configuration (required for the redis and multi_tier backends):
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Connection pool size (default: 10)
//   - REDIS_MAX_RETRIES: Connection attempts before the client disables itself (default: 3)
//   - REDIS_OP_TIMEOUT: Per-operation deadline, Go duration syntax (default: 2s)
//
// Logging:
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//
// Example usage:
//
//	cfg := config.Load()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid configuration: %v", err)
//	}
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"chatbot-cache/internal/cache"
	redisclient "chatbot-cache/internal/redis"
)

// Config holds the process-wide caching configuration.
type Config struct {
	Backend            string
	DefaultTTL         time.Duration
	MaxSize            int
	EvictionPolicy     string
	KeyPrefix          string
	Disabled           bool
	EnableStats        bool
	L1Ratio            float64
	PromotionThreshold int
	SweepSchedule      string
	SingleFlight       bool

	RedisAddress    string
	RedisPassword   string
	RedisDB         int
	RedisPoolSize   int
	RedisMaxRetries int
	RedisOpTimeout  time.Duration

	LogLevel string
}

// Load reads configuration from the environment, seeding it from a .env
// file when one is present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Backend:            getEnv("CACHE_BACKEND", "memory"),
		DefaultTTL:         getDuration("CACHE_DEFAULT_TTL", time.Hour),
		MaxSize:            getInt("CACHE_MAX_SIZE", 1000),
		EvictionPolicy:     getEnv("CACHE_EVICTION_POLICY", "lru"),
		KeyPrefix:          getEnv("CACHE_KEY_PREFIX", "cache"),
		Disabled:           getBool("CACHE_DISABLED", false),
		EnableStats:        getBool("CACHE_ENABLE_STATS", true),
		L1Ratio:            getFloat("CACHE_L1_RATIO", 0.1),
		PromotionThreshold: getInt("CACHE_PROMOTION_THRESHOLD", 2),
		SweepSchedule:      getEnv("CACHE_SWEEP_SCHEDULE", cache.DefaultSweepSchedule),
		SingleFlight:       getBool("CACHE_SINGLE_FLIGHT", false),

		RedisAddress:    getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getInt("REDIS_DB", 0),
		RedisPoolSize:   getInt("REDIS_POOL_SIZE", 10),
		RedisMaxRetries: getInt("REDIS_MAX_RETRIES", 3),
		RedisOpTimeout:  getDuration("REDIS_OP_TIMEOUT", 2*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration for values that would break at runtime.
func (c *Config) Validate() error {
	switch cache.Backend(c.Backend) {
	case cache.BackendMemory, cache.BackendRedis, cache.BackendMultiTier:
	default:
		return fmt.Errorf("invalid CACHE_BACKEND %q: must be memory, redis or multi_tier", c.Backend)
	}

	switch cache.EvictionPolicy(c.EvictionPolicy) {
	case cache.EvictLRU, cache.EvictTTL, cache.EvictRandom:
	default:
		return fmt.Errorf("invalid CACHE_EVICTION_POLICY %q: must be lru, ttl or random", c.EvictionPolicy)
	}

	if c.MaxSize < 0 {
		return fmt.Errorf("CACHE_MAX_SIZE must not be negative, got %d", c.MaxSize)
	}
	if c.L1Ratio <= 0 || c.L1Ratio > 1 {
		return fmt.Errorf("CACHE_L1_RATIO must be in (0, 1], got %g", c.L1Ratio)
	}
	if c.PromotionThreshold < 1 {
		return fmt.Errorf("CACHE_PROMOTION_THRESHOLD must be at least 1, got %d", c.PromotionThreshold)
	}

	if cache.Backend(c.Backend) != cache.BackendMemory {
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required for the %s backend", c.Backend)
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be 0-15, got %d", c.RedisDB)
		}
	}

	return nil
}

// CacheConfig converts the loaded settings into the cache package's base
// config.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		DefaultTTL:         c.DefaultTTL,
		MaxSize:            c.MaxSize,
		Policy:             cache.EvictionPolicy(c.EvictionPolicy),
		KeyPrefix:          c.KeyPrefix,
		Disabled:           c.Disabled,
		EnableStats:        c.EnableStats,
		L1Ratio:            c.L1Ratio,
		PromotionThreshold: c.PromotionThreshold,
	}
}

// RedisConfig converts the loaded settings into the redis client's config.
func (c *Config) RedisConfig() *redisclient.Config {
	return &redisclient.Config{
		Address:           c.RedisAddress,
		Password:          c.RedisPassword,
		DB:                c.RedisDB,
		PoolSize:          c.RedisPoolSize,
		MaxConnectRetries: c.RedisMaxRetries,
		OpTimeout:         c.RedisOpTimeout,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
