package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	apperrors "chatbot-cache/internal/common/errors"
	"chatbot-cache/internal/common/logging"
	redisclient "chatbot-cache/internal/redis"
)

// l1TTLCap bounds the L1 default TTL so locally cached copies of remote
// entries go stale quickly.
const l1TTLCap = 5 * time.Minute

// TieredCache composes a memory L1 in front of a Redis L2. Reads check L1
// first; L2 hits are promoted into L1 once a key has been fetched from L2
// PromotionThreshold times. Writes and deletes fan out to both tiers with
// best-effort semantics: the operation succeeds if either tier succeeds, and
// the tiers may briefly disagree. There is no cross-tier transaction.
type TieredCache struct {
	config   Config
	l1       *MemoryCache
	l2       *RedisCache
	counters statCounters

	mu      sync.Mutex
	pending map[string]int // key -> consecutive L2 hits since last promotion
}

// NewTieredCache creates a multi-tier cache. L1 gets L1Ratio of the
// configured capacity and a capped default TTL; L2 gets the full
// configuration.
func NewTieredCache(config Config, client *redisclient.Client) *TieredCache {
	config = config.withDefaults()

	l1cfg := config
	l1cfg.MaxSize = int(config.L1Ratio * float64(config.MaxSize))
	if l1cfg.MaxSize <= 0 {
		// L1 must stay the small tier even when the ratio truncates to zero.
		if config.MaxSize > 0 {
			l1cfg.MaxSize = 1
		} else {
			l1cfg.MaxSize = 100
		}
	}
	if l1cfg.DefaultTTL == 0 || l1cfg.DefaultTTL > l1TTLCap {
		l1cfg.DefaultTTL = l1TTLCap
	}

	return &TieredCache{
		config:   config,
		l1:       NewMemoryCache(l1cfg),
		l2:       NewRedisCache(config, client),
		counters: statCounters{enabled: config.EnableStats},
		pending:  make(map[string]int),
	}
}

// Get serves from L1 when possible, falling back to L2 and promoting keys
// that keep getting fetched from there.
func (t *TieredCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if t.config.Disabled || !ValidKey(key) {
		return nil, false
	}

	if value, ok := t.l1.Get(ctx, key); ok {
		t.counters.hit()
		return value, true
	}

	if value, ok := t.l2.Get(ctx, key); ok {
		t.counters.hit()
		t.maybePromote(ctx, key, value)
		return value, true
	}

	t.counters.miss()
	return nil, false
}

// maybePromote bumps the key's promotion counter and copies the value into
// L1 once the threshold is reached. The promoted copy lives for
// min(L1 default TTL, remaining L2 TTL).
func (t *TieredCache) maybePromote(ctx context.Context, key string, value interface{}) {
	t.mu.Lock()
	t.pending[key]++
	if t.pending[key] < t.config.PromotionThreshold {
		t.mu.Unlock()
		return
	}
	delete(t.pending, key)
	t.mu.Unlock()

	ttl := t.l1.config.DefaultTTL
	if remaining, ok := t.l2.TTL(ctx, key); ok && remaining > 0 && remaining < ttl {
		ttl = remaining
	}
	t.l1.Set(ctx, key, value, ttl)
}

// forget drops the key's promotion counter.
func (t *TieredCache) forget(key string) {
	t.mu.Lock()
	delete(t.pending, key)
	t.mu.Unlock()
}

// Set writes to both tiers; true if either succeeded.
func (t *TieredCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	if t.config.Disabled || !ValidKey(key) {
		return false
	}

	ok1 := t.l1.Set(ctx, key, value, ttl)
	ok2 := t.l2.Set(ctx, key, value, ttl)
	t.forget(key)
	t.logPartial("set", key, ok1, ok2)
	return ok1 || ok2
}

// Delete removes from both tiers; true if either removed a value.
func (t *TieredCache) Delete(ctx context.Context, key string) bool {
	if t.config.Disabled || !ValidKey(key) {
		return false
	}

	d1 := t.l1.Delete(ctx, key)
	d2 := t.l2.Delete(ctx, key)
	t.forget(key)
	return d1 || d2
}

// Exists reports whether either tier holds the key.
func (t *TieredCache) Exists(ctx context.Context, key string) bool {
	if t.config.Disabled || !ValidKey(key) {
		return false
	}
	return t.l1.Exists(ctx, key) || t.l2.Exists(ctx, key)
}

// Clear empties both tiers and the promotion counters.
func (t *TieredCache) Clear(ctx context.Context) bool {
	if t.config.Disabled {
		return true
	}

	c1 := t.l1.Clear(ctx)
	c2 := t.l2.Clear(ctx)

	t.mu.Lock()
	t.pending = make(map[string]int)
	t.mu.Unlock()

	t.logPartial("clear", "", c1, c2)
	return c1 || c2
}

// Keys returns the union of both tiers' matching keys.
func (t *TieredCache) Keys(ctx context.Context, pattern string) []string {
	if t.config.Disabled {
		return nil
	}

	seen := make(map[string]struct{})
	for _, key := range t.l2.Keys(ctx, pattern) {
		seen[key] = struct{}{}
	}
	for _, key := range t.l1.Keys(ctx, pattern) {
		seen[key] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MGet routes through Get per key so promotion counting still applies.
func (t *TieredCache) MGet(ctx context.Context, keys ...string) map[string]interface{} {
	values := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		if v, ok := t.Get(ctx, key); ok {
			values[key] = v
		}
	}
	return values
}

// MSet writes all values to both tiers.
func (t *TieredCache) MSet(ctx context.Context, values map[string]interface{}, ttl time.Duration) bool {
	if t.config.Disabled {
		return false
	}

	ok1 := t.l1.MSet(ctx, values, ttl)
	ok2 := t.l2.MSet(ctx, values, ttl)
	for key := range values {
		t.forget(key)
	}
	t.logPartial("mset", "", ok1, ok2)
	return ok1 || ok2
}

// Increment applies to L2 as the source of truth and drops any L1 copy so
// the tiers reconverge on the next promotion cycle. When L2 is unreachable
// the increment falls back to L1 so local counters keep working.
func (t *TieredCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if t.config.Disabled {
		return 0, nil
	}
	if !ValidKey(key) {
		return 0, apperrors.ValidationError("invalid cache key").WithContext("key", key)
	}

	n, err := t.l2.Increment(ctx, key, delta)
	if err == nil {
		t.l1.Delete(ctx, key)
		t.forget(key)
		return n, nil
	}
	if apperrors.IsType(err, apperrors.ErrTypeNotNumeric) {
		return 0, err
	}

	return t.l1.Increment(ctx, key, delta)
}

// Expire updates the ttl in both tiers; true if either succeeded.
func (t *TieredCache) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	if t.config.Disabled || !ValidKey(key) {
		return false
	}

	e1 := t.l1.Expire(ctx, key, ttl)
	e2 := t.l2.Expire(ctx, key, ttl)
	return e1 || e2
}

// TTL prefers the authoritative L2 answer and falls back to L1.
func (t *TieredCache) TTL(ctx context.Context, key string) (time.Duration, bool) {
	if t.config.Disabled || !ValidKey(key) {
		return 0, false
	}

	if d, ok := t.l2.TTL(ctx, key); ok {
		return d, ok
	}
	return t.l1.TTL(ctx, key)
}

// InvalidateLocal removes the key from L1 only, forcing the next read to go
// to L2. Used when another process mutated L2 and the local copy must be
// treated as stale.
func (t *TieredCache) InvalidateLocal(ctx context.Context, key string) {
	t.l1.Delete(ctx, key)
	t.forget(key)
}

// Cleanup sweeps expired entries from the L1 tier; Redis expires its own.
func (t *TieredCache) Cleanup() int {
	return t.l1.Cleanup()
}

// Stats reports the composed view: tiered hit/miss counters, L1 evictions,
// errors from both tiers, L2's entry count as the authoritative total and
// L1's as the advisory memory figure.
func (t *TieredCache) Stats() Stats {
	l1 := t.l1.Stats()
	l2 := t.l2.Stats()
	s := t.counters.snapshot(l2.Entries, int64(l1.Entries))
	s.Evictions = l1.Evictions
	s.Errors = l1.Errors + l2.Errors
	return s
}

// HealthCheck is healthy when both tiers are, degraded when exactly one is.
func (t *TieredCache) HealthCheck(ctx context.Context) Health {
	if t.config.Disabled {
		return Health{Status: StatusDisabled, Backend: BackendMultiTier}
	}

	h1 := t.l1.HealthCheck(ctx)
	h2 := t.l2.HealthCheck(ctx)

	status := StatusUnhealthy
	switch {
	case h1.Status == StatusHealthy && h2.Status == StatusHealthy:
		status = StatusHealthy
	case h1.Status == StatusHealthy || h2.Status == StatusHealthy:
		status = StatusDegraded
	}

	return Health{
		Status:  status,
		Backend: BackendMultiTier,
		Detail: map[string]interface{}{
			"l1": h1,
			"l2": h2,
		},
	}
}

// logPartial records a fan-out operation that succeeded in one tier only.
func (t *TieredCache) logPartial(op, key string, ok1, ok2 bool) {
	if ok1 == ok2 {
		return
	}

	var errs *multierror.Error
	if !ok1 {
		errs = multierror.Append(errs, apperrors.InternalError("memory tier "+op+" failed", nil))
	}
	if !ok2 {
		errs = multierror.Append(errs, apperrors.ConnectionError("redis tier "+op+" failed", nil))
	}
	logging.Debug("tiered cache partial "+op,
		logging.String("key", key),
		logging.Err(errs.ErrorOrNil()),
	)
}
