package cache

import (
	"fmt"
	"time"
)

// EvictionPolicy selects which entry the memory tier removes under capacity
// pressure.
type EvictionPolicy string

const (
	// EvictLRU removes the least-recently-used entry
	EvictLRU EvictionPolicy = "lru"
	// EvictTTL removes the entry with the nearest expiry, falling back to
	// LRU when no entry carries one
	EvictTTL EvictionPolicy = "ttl"
	// EvictRandom removes an arbitrary entry
	EvictRandom EvictionPolicy = "random"
)

// Backend selects the cache implementation, one process-wide choice applied
// to every purpose.
type Backend string

const (
	// BackendMemory uses the in-process tier only
	BackendMemory Backend = "memory"
	// BackendRedis uses the remote tier only
	BackendRedis Backend = "redis"
	// BackendMultiTier composes memory L1 with Redis L2
	BackendMultiTier Backend = "multi_tier"
)

// Config holds the tuning knobs of one cache instance. It is immutable once
// the instance is constructed.
type Config struct {
	// DefaultTTL applies to entries stored with KeepDefault. Zero means
	// entries never expire.
	DefaultTTL time.Duration `json:"default_ttl"`
	// MaxSize bounds the entry count of the memory tier. Zero means
	// unbounded.
	MaxSize int `json:"max_size"`
	// Policy is the memory tier's eviction policy, fixed at construction.
	Policy EvictionPolicy `json:"eviction_policy"`
	// KeyPrefix namespaces this instance's keys on shared backends.
	KeyPrefix string `json:"key_prefix"`
	// Disabled short-circuits every operation: reads miss, writes fail,
	// Clear vacuously succeeds.
	Disabled bool `json:"disabled"`
	// EnableStats toggles hit/miss accounting.
	EnableStats bool `json:"enable_stats"`
	// L1Ratio sizes the multi-tier L1 as a fraction of MaxSize.
	L1Ratio float64 `json:"l1_size_ratio"`
	// PromotionThreshold is the number of consecutive L2 hits before a key
	// is promoted into L1.
	PromotionThreshold int `json:"promotion_threshold"`
}

// DefaultConfig returns the baseline cache configuration.
func DefaultConfig() Config {
	return Config{
		DefaultTTL:         time.Hour,
		MaxSize:            1000,
		Policy:             EvictLRU,
		KeyPrefix:          "cache",
		EnableStats:        true,
		L1Ratio:            0.1,
		PromotionThreshold: 2,
	}
}

// withDefaults fills unset fields so backends never see zero knobs.
func (c Config) withDefaults() Config {
	if c.Policy == "" {
		c.Policy = EvictLRU
	}
	if c.L1Ratio <= 0 || c.L1Ratio > 1 {
		c.L1Ratio = 0.1
	}
	if c.PromotionThreshold <= 0 {
		c.PromotionThreshold = 2
	}
	return c
}

// fingerprint is the identity the manager keys instances by: two configs
// with the same fingerprint share one instance.
func (c Config) fingerprint() string {
	return fmt.Sprintf("ttl=%s|max=%d|policy=%s|prefix=%s|disabled=%t|stats=%t|ratio=%g|promote=%d",
		c.DefaultTTL, c.MaxSize, c.Policy, c.KeyPrefix, c.Disabled, c.EnableStats, c.L1Ratio, c.PromotionThreshold)
}

// resolveTTL maps the Set ttl argument onto an effective duration, where
// zero means "no expiry".
func (c Config) resolveTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return c.DefaultTTL
	}
	return ttl
}
