package cache

import (
	"container/list"
	"context"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	apperrors "chatbot-cache/internal/common/errors"
)

// memoryEntry is one stored value. A zero expiresAt means no expiry.
type memoryEntry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemoryCache is the in-process tier: a capacity-bounded, TTL-aware store
// guarded by a single mutex. Recency order lives in a doubly linked list
// whose front is the most recently used entry. Every compound operation
// (check capacity, evict, insert) runs as one critical section.
type MemoryCache struct {
	config   Config
	counters statCounters

	mu    sync.Mutex
	items map[string]*list.Element // key -> element holding *memoryEntry
	order *list.List               // front = most recently used
}

// NewMemoryCache creates an in-process cache with the given configuration.
func NewMemoryCache(config Config) *MemoryCache {
	config = config.withDefaults()
	return &MemoryCache{
		config:   config,
		counters: statCounters{enabled: config.EnableStats},
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves a value. Expired entries are removed on the way out and read
// as misses.
func (m *MemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if m.config.Disabled || !ValidKey(key) {
		return nil, false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		m.counters.miss()
		return nil, false
	}

	ent := elem.Value.(*memoryEntry)
	if ent.expired(time.Now()) {
		m.removeElement(elem)
		m.counters.miss()
		return nil, false
	}

	if m.config.Policy == EvictLRU {
		m.order.MoveToFront(elem)
	}
	m.counters.hit()
	return ent.value, true
}

// Set stores a value, evicting one entry per the configured policy when a
// new key would exceed MaxSize.
func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	if m.config.Disabled || !ValidKey(key) {
		return false
	}

	now := time.Now()
	expiresAt := m.expiryFor(now, ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLocked(now, key, value, expiresAt)
	return true
}

// setLocked inserts or overwrites an entry and marks it most recently used.
// Callers must hold mu.
func (m *MemoryCache) setLocked(now time.Time, key string, value interface{}, expiresAt time.Time) {
	if elem, ok := m.items[key]; ok {
		ent := elem.Value.(*memoryEntry)
		ent.value = value
		ent.expiresAt = expiresAt
		m.order.MoveToFront(elem)
		return
	}

	if m.config.MaxSize > 0 && len(m.items) >= m.config.MaxSize {
		m.evictOne(now)
	}

	elem := m.order.PushFront(&memoryEntry{key: key, value: value, expiresAt: expiresAt})
	m.items[key] = elem
}

// evictOne removes exactly one entry according to the eviction policy.
// Callers must hold mu.
func (m *MemoryCache) evictOne(now time.Time) {
	var victim *list.Element

	switch m.config.Policy {
	case EvictTTL:
		// Nearest expiry wins; entries without one are skipped.
		var soonest time.Time
		for _, elem := range m.items {
			ent := elem.Value.(*memoryEntry)
			if ent.expiresAt.IsZero() {
				continue
			}
			if victim == nil || ent.expiresAt.Before(soonest) {
				victim = elem
				soonest = ent.expiresAt
			}
		}
		if victim == nil {
			victim = m.order.Back()
		}
	case EvictRandom:
		for _, elem := range m.items {
			victim = elem
			break
		}
	default:
		victim = m.order.Back()
	}

	if victim != nil {
		m.removeElement(victim)
		m.counters.evicted()
	}
}

// removeElement drops an entry from both structures. Callers must hold mu.
func (m *MemoryCache) removeElement(elem *list.Element) {
	ent := elem.Value.(*memoryEntry)
	delete(m.items, ent.key)
	m.order.Remove(elem)
}

// expiryFor maps a Set ttl argument onto an absolute expiry.
func (m *MemoryCache) expiryFor(now time.Time, ttl time.Duration) time.Time {
	effective := m.config.resolveTTL(ttl)
	if effective <= 0 {
		return time.Time{}
	}
	return now.Add(effective)
}

// Delete removes a key, reporting whether a live value was removed.
func (m *MemoryCache) Delete(ctx context.Context, key string) bool {
	if m.config.Disabled || !ValidKey(key) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return false
	}
	live := !elem.Value.(*memoryEntry).expired(time.Now())
	m.removeElement(elem)
	return live
}

// Exists reports whether key holds a live value, removing it if expired.
func (m *MemoryCache) Exists(ctx context.Context, key string) bool {
	if m.config.Disabled || !ValidKey(key) {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return false
	}
	if elem.Value.(*memoryEntry).expired(time.Now()) {
		m.removeElement(elem)
		return false
	}
	return true
}

// Clear removes every entry.
func (m *MemoryCache) Clear(ctx context.Context) bool {
	if m.config.Disabled {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*list.Element)
	m.order.Init()
	return true
}

// Keys returns the live keys matching pattern, sorted for stable output.
func (m *MemoryCache) Keys(ctx context.Context, pattern string) []string {
	if m.config.Disabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleanupLocked(time.Now())

	keys := make([]string, 0, len(m.items))
	for key := range m.items {
		if matchKey(pattern, key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// MGet returns the live values for the given keys; misses are omitted.
func (m *MemoryCache) MGet(ctx context.Context, keys ...string) map[string]interface{} {
	values := make(map[string]interface{}, len(keys))
	for _, key := range keys {
		if v, ok := m.Get(ctx, key); ok {
			values[key] = v
		}
	}
	return values
}

// MSet stores all values with a shared ttl.
func (m *MemoryCache) MSet(ctx context.Context, values map[string]interface{}, ttl time.Duration) bool {
	ok := true
	for key, value := range values {
		if !m.Set(ctx, key, value, ttl) {
			ok = false
		}
	}
	return ok
}

// Increment adds delta to the integer stored at key under the instance lock,
// so concurrent increments never lose updates. An absent key is created with
// value delta and the default TTL.
func (m *MemoryCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if m.config.Disabled {
		return 0, nil
	}
	if !ValidKey(key) {
		return 0, apperrors.ValidationError("invalid cache key").WithContext("key", key)
	}

	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if ok && elem.Value.(*memoryEntry).expired(now) {
		m.removeElement(elem)
		ok = false
	}

	if !ok {
		m.setLocked(now, key, delta, m.expiryFor(now, KeepDefault))
		return delta, nil
	}

	ent := elem.Value.(*memoryEntry)
	current, err := asInt64(ent.value)
	if err != nil {
		return 0, apperrors.NotNumericError(key)
	}

	current += delta
	ent.value = current
	if m.config.Policy == EvictLRU {
		m.order.MoveToFront(elem)
	}
	return current, nil
}

// Expire sets a new ttl on an existing live key.
func (m *MemoryCache) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	if m.config.Disabled || !ValidKey(key) {
		return false
	}

	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return false
	}
	ent := elem.Value.(*memoryEntry)
	if ent.expired(now) {
		m.removeElement(elem)
		return false
	}

	if ttl <= 0 {
		ent.expiresAt = time.Time{}
	} else {
		ent.expiresAt = now.Add(ttl)
	}
	return true
}

// TTL returns the remaining lifetime of key. (0, false) means absent,
// (NoTTL, true) means the entry carries no expiry.
func (m *MemoryCache) TTL(ctx context.Context, key string) (time.Duration, bool) {
	if m.config.Disabled || !ValidKey(key) {
		return 0, false
	}

	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return 0, false
	}
	ent := elem.Value.(*memoryEntry)
	if ent.expired(now) {
		m.removeElement(elem)
		return 0, false
	}
	if ent.expiresAt.IsZero() {
		return NoTTL, true
	}
	return ent.expiresAt.Sub(now), true
}

// Cleanup removes all currently expired entries and returns the count.
func (m *MemoryCache) Cleanup() int {
	if m.config.Disabled {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.cleanupLocked(time.Now())
}

// cleanupLocked sweeps expired entries. Callers must hold mu.
func (m *MemoryCache) cleanupLocked(now time.Time) int {
	removed := 0
	for elem := m.order.Back(); elem != nil; {
		prev := elem.Prev()
		if elem.Value.(*memoryEntry).expired(now) {
			m.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Stats sweeps expired entries and returns a snapshot of the counters.
func (m *MemoryCache) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.config.Disabled {
		m.cleanupLocked(time.Now())
	}
	entries := len(m.items)
	return m.counters.snapshot(entries, int64(entries))
}

// HealthCheck reports the tier status. The memory tier is healthy whenever
// it is enabled; there is nothing remote to probe.
func (m *MemoryCache) HealthCheck(ctx context.Context) Health {
	if m.config.Disabled {
		return Health{Status: StatusDisabled, Backend: BackendMemory}
	}

	m.mu.Lock()
	entries := len(m.items)
	m.mu.Unlock()

	return Health{
		Status:  StatusHealthy,
		Backend: BackendMemory,
		Detail: map[string]interface{}{
			"entries":  entries,
			"max_size": m.config.MaxSize,
			"policy":   string(m.config.Policy),
		},
	}
}

// matchKey applies the Keys pattern semantics: empty matches everything,
// glob metacharacters trigger glob matching, anything else is a substring.
func matchKey(pattern, key string) bool {
	if pattern == "" {
		return true
	}
	if strings.ContainsAny(pattern, "*?[") {
		ok, err := path.Match(pattern, key)
		return err == nil && ok
	}
	return strings.Contains(key, pattern)
}

// asInt64 parses a stored value as an integer for Increment. Floats are
// accepted only when integral; anything else is not numeric.
func asInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, apperrors.ValidationError("not an integer")
		}
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, apperrors.ValidationError("not an integer")
		}
		return n, nil
	default:
		return 0, apperrors.ValidationError("not an integer")
	}
}
