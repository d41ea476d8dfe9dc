package cache

import (
	"context"
	"time"
	"unicode"
)

// TTL sentinels for Set, MSet and Expire.
const (
	// KeepDefault tells Set to use the instance's configured default TTL
	KeepDefault time.Duration = -1
	// NoExpiration tells Set to store the entry without an expiry
	NoExpiration time.Duration = 0
)

// NoTTL is returned by TTL for entries that exist but carry no expiry.
// It is distinct from the (0, false) result for absent keys.
const NoTTL time.Duration = -1

// MaxKeyLength is the longest accepted cache key.
const MaxKeyLength = 250

// Cache defines the contract every backend implements. All operations are
// fail-open: backend failures surface as misses or failed writes, never as
// panics or errors, with one exception - Increment returns a not_numeric
// error rather than silently coercing a non-numeric value.
type Cache interface {
	// Get returns the value for key, or (nil, false) on miss, expiry,
	// invalid key or backend failure.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores value under key. ttl is KeepDefault, NoExpiration or a
	// positive duration. Returns false on invalid key, serialization
	// failure or backend failure.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool

	// Delete removes key, reporting whether a live value was removed.
	Delete(ctx context.Context, key string) bool

	// Exists reports whether key holds a live value.
	Exists(ctx context.Context, key string) bool

	// Clear removes every entry in this cache's namespace.
	Clear(ctx context.Context) bool

	// Keys returns the keys in this cache's namespace matching pattern,
	// with the key prefix stripped. An empty pattern matches everything;
	// a pattern with glob metacharacters is matched as a glob, anything
	// else as a substring.
	Keys(ctx context.Context, pattern string) []string

	// MGet returns the live values for the given keys; absent or expired
	// keys are omitted from the result.
	MGet(ctx context.Context, keys ...string) map[string]interface{}

	// MSet stores all values with a shared ttl, returning true only if
	// every entry was stored.
	MSet(ctx context.Context, values map[string]interface{}, ttl time.Duration) bool

	// Increment adds delta to the integer stored at key, creating it with
	// value delta if absent. Returns a not_numeric error when the stored
	// value cannot be parsed as an integer; backend failures are reported
	// as connection or timeout errors and mean the increment did not apply.
	Increment(ctx context.Context, key string, delta int64) (int64, error)

	// Expire sets a new ttl on an existing key. NoExpiration removes the
	// expiry. Returns false if the key is absent.
	Expire(ctx context.Context, key string, ttl time.Duration) bool

	// TTL returns the remaining lifetime of key. (0, false) means absent;
	// (NoTTL, true) means the entry exists without an expiry.
	TTL(ctx context.Context, key string) (time.Duration, bool)

	// Stats returns a snapshot of runtime counters.
	Stats() Stats

	// HealthCheck probes the backend and reports its status. It never
	// returns an error; failures downgrade the status instead.
	HealthCheck(ctx context.Context) Health
}

// Status classifies the outcome of a health check.
type Status string

const (
	// StatusHealthy means the backend is fully operational
	StatusHealthy Status = "healthy"
	// StatusDegraded means the backend works partially
	StatusDegraded Status = "degraded"
	// StatusUnhealthy means the backend is not usable
	StatusUnhealthy Status = "unhealthy"
	// StatusDisabled means the cache is configured off
	StatusDisabled Status = "disabled"
)

// Health is the result of a backend health check.
type Health struct {
	Status  Status                 `json:"status"`
	Backend Backend                `json:"backend"`
	Detail  map[string]interface{} `json:"detail,omitempty"`
}

// ValidKey reports whether key is acceptable: non-empty, at most
// MaxKeyLength characters, free of whitespace and control characters.
// Operations treat invalid keys as misses or failed writes.
func ValidKey(key string) bool {
	if key == "" || len(key) > MaxKeyLength {
		return false
	}
	for _, r := range key {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}
