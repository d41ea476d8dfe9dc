package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	apperrors "chatbot-cache/internal/common/errors"
	"chatbot-cache/internal/common/logging"
	redisclient "chatbot-cache/internal/redis"
)

// RedisCache is the remote tier: a thin client to a Redis server. Values are
// serialized as JSON and TTLs are enforced server-side. Every remote call is
// wrapped so connectivity and protocol errors are logged, counted in
// Stats.Errors and converted to fail-open return values.
type RedisCache struct {
	config   Config
	client   *redisclient.Client
	counters statCounters
}

// NewRedisCache creates a Redis-backed cache on top of an existing client.
func NewRedisCache(config Config, client *redisclient.Client) *RedisCache {
	config = config.withDefaults()
	return &RedisCache{
		config:   config,
		client:   client,
		counters: statCounters{enabled: config.EnableStats},
	}
}

// prefixed returns the storage key within this instance's namespace.
func (r *RedisCache) prefixed(key string) string {
	if r.config.KeyPrefix == "" {
		return key
	}
	return r.config.KeyPrefix + ":" + key
}

// stripPrefix undoes prefixed for keys coming back from SCAN.
func (r *RedisCache) stripPrefix(key string) string {
	if r.config.KeyPrefix == "" {
		return key
	}
	return strings.TrimPrefix(key, r.config.KeyPrefix+":")
}

// fail records a swallowed remote error.
func (r *RedisCache) fail(op, key string, err error) {
	r.counters.failed()
	logging.Warn("redis cache operation failed",
		logging.String("op", op),
		logging.String("key", key),
		logging.Err(err),
	)
}

// Get retrieves and decodes a value. Corrupt payloads are dropped and read
// as misses.
func (r *RedisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	if r.config.Disabled || !ValidKey(key) {
		return nil, false
	}

	var raw string
	found := false
	err := r.client.Do(ctx, "get", func(ctx context.Context, rdb *goredis.Client) error {
		val, err := rdb.Get(ctx, r.prefixed(key)).Result()
		if err == goredis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		raw = val
		found = true
		return nil
	})
	if err != nil {
		r.fail("get", key, err)
		r.counters.miss()
		return nil, false
	}
	if !found {
		r.counters.miss()
		return nil, false
	}

	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		// Corrupt entry: drop it so the next read goes to the source of truth.
		_ = r.client.Do(ctx, "del", func(ctx context.Context, rdb *goredis.Client) error {
			return rdb.Del(ctx, r.prefixed(key)).Err()
		})
		r.fail("decode", key, apperrors.SerializationError("failed to decode cached value", err))
		r.counters.miss()
		return nil, false
	}

	r.counters.hit()
	return value, true
}

// Set encodes and stores a value with the resolved ttl. Zero ttl stores
// without expiry.
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	if r.config.Disabled || !ValidKey(key) {
		return false
	}

	data, err := json.Marshal(value)
	if err != nil {
		r.fail("set", key, apperrors.SerializationError("failed to encode cache value", err))
		return false
	}

	effective := r.config.resolveTTL(ttl)
	err = r.client.Do(ctx, "set", func(ctx context.Context, rdb *goredis.Client) error {
		return rdb.Set(ctx, r.prefixed(key), data, effective).Err()
	})
	if err != nil {
		r.fail("set", key, err)
		return false
	}
	return true
}

// Delete removes a key, reporting whether a value was removed.
func (r *RedisCache) Delete(ctx context.Context, key string) bool {
	if r.config.Disabled || !ValidKey(key) {
		return false
	}

	var removed int64
	err := r.client.Do(ctx, "del", func(ctx context.Context, rdb *goredis.Client) error {
		n, err := rdb.Del(ctx, r.prefixed(key)).Result()
		removed = n
		return err
	})
	if err != nil {
		r.fail("del", key, err)
		return false
	}
	return removed > 0
}

// Exists reports whether key holds a value.
func (r *RedisCache) Exists(ctx context.Context, key string) bool {
	if r.config.Disabled || !ValidKey(key) {
		return false
	}

	var count int64
	err := r.client.Do(ctx, "exists", func(ctx context.Context, rdb *goredis.Client) error {
		n, err := rdb.Exists(ctx, r.prefixed(key)).Result()
		count = n
		return err
	})
	if err != nil {
		r.fail("exists", key, err)
		return false
	}
	return count > 0
}

// Clear deletes every key in this instance's namespace using SCAN, so other
// purposes sharing the server are untouched.
func (r *RedisCache) Clear(ctx context.Context) bool {
	if r.config.Disabled {
		return true
	}

	err := r.client.Do(ctx, "clear", func(ctx context.Context, rdb *goredis.Client) error {
		var cursor uint64
		for {
			keys, next, err := rdb.Scan(ctx, cursor, r.prefixed("*"), 100).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := rdb.Del(ctx, keys...).Err(); err != nil {
					return err
				}
			}
			cursor = next
			if cursor == 0 {
				return nil
			}
		}
	})
	if err != nil {
		r.fail("clear", "", err)
		return false
	}
	return true
}

// Keys returns the namespace's keys matching pattern, prefix stripped and
// sorted. Substring patterns are widened to a glob for Redis MATCH.
func (r *RedisCache) Keys(ctx context.Context, pattern string) []string {
	if r.config.Disabled {
		return nil
	}

	match := "*"
	switch {
	case pattern == "":
	case strings.ContainsAny(pattern, "*?["):
		match = pattern
	default:
		match = "*" + pattern + "*"
	}

	var keys []string
	err := r.client.Do(ctx, "keys", func(ctx context.Context, rdb *goredis.Client) error {
		var cursor uint64
		for {
			batch, next, err := rdb.Scan(ctx, cursor, r.prefixed(match), 100).Result()
			if err != nil {
				return err
			}
			for _, k := range batch {
				keys = append(keys, r.stripPrefix(k))
			}
			cursor = next
			if cursor == 0 {
				return nil
			}
		}
	})
	if err != nil {
		r.fail("keys", pattern, err)
		return nil
	}
	sort.Strings(keys)
	return keys
}

// MGet fetches all keys in one round trip; misses and corrupt payloads are
// omitted.
func (r *RedisCache) MGet(ctx context.Context, keys ...string) map[string]interface{} {
	values := make(map[string]interface{}, len(keys))
	if r.config.Disabled || len(keys) == 0 {
		return values
	}

	valid := make([]string, 0, len(keys))
	prefixed := make([]string, 0, len(keys))
	for _, key := range keys {
		if ValidKey(key) {
			valid = append(valid, key)
			prefixed = append(prefixed, r.prefixed(key))
		}
	}
	if len(prefixed) == 0 {
		return values
	}

	var raw []interface{}
	err := r.client.Do(ctx, "mget", func(ctx context.Context, rdb *goredis.Client) error {
		res, err := rdb.MGet(ctx, prefixed...).Result()
		raw = res
		return err
	})
	if err != nil {
		r.fail("mget", "", err)
		for range valid {
			r.counters.miss()
		}
		return values
	}

	for i, item := range raw {
		if item == nil {
			r.counters.miss()
			continue
		}
		s, ok := item.(string)
		if !ok {
			r.counters.miss()
			continue
		}
		var value interface{}
		if err := json.Unmarshal([]byte(s), &value); err != nil {
			r.counters.failed()
			r.counters.miss()
			continue
		}
		values[valid[i]] = value
		r.counters.hit()
	}
	return values
}

// MSet stores all values with a shared ttl in one pipeline.
func (r *RedisCache) MSet(ctx context.Context, values map[string]interface{}, ttl time.Duration) bool {
	if r.config.Disabled {
		return false
	}
	if len(values) == 0 {
		return true
	}

	effective := r.config.resolveTTL(ttl)
	ok := true

	encoded := make(map[string][]byte, len(values))
	for key, value := range values {
		if !ValidKey(key) {
			ok = false
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			r.fail("mset", key, apperrors.SerializationError("failed to encode cache value", err))
			ok = false
			continue
		}
		encoded[key] = data
	}
	if len(encoded) == 0 {
		return ok && len(values) == 0
	}

	err := r.client.Do(ctx, "mset", func(ctx context.Context, rdb *goredis.Client) error {
		pipe := rdb.Pipeline()
		for key, data := range encoded {
			pipe.Set(ctx, r.prefixed(key), data, effective)
		}
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		r.fail("mset", "", err)
		return false
	}
	return ok
}

// Increment delegates to Redis INCRBY. A freshly created counter picks up
// the default TTL. Connection and timeout errors mean the increment did not
// apply; a not_numeric error means the stored value is not an integer.
func (r *RedisCache) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	if r.config.Disabled {
		return 0, nil
	}
	if !ValidKey(key) {
		return 0, apperrors.ValidationError("invalid cache key").WithContext("key", key)
	}

	var result int64
	err := r.client.Do(ctx, "incrby", func(ctx context.Context, rdb *goredis.Client) error {
		n, err := rdb.IncrBy(ctx, r.prefixed(key), delta).Result()
		if err != nil {
			return err
		}
		result = n
		if r.config.DefaultTTL > 0 {
			// A freshly created counter carries no expiry; give it the
			// default lifetime. Counters that already have one keep it.
			remaining, err := rdb.TTL(ctx, r.prefixed(key)).Result()
			if err != nil {
				return err
			}
			if remaining == -1 {
				return rdb.Expire(ctx, r.prefixed(key), r.config.DefaultTTL).Err()
			}
		}
		return nil
	})
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return 0, apperrors.NotNumericError(key)
		}
		r.fail("incrby", key, err)
		return 0, apperrors.ConnectionError("increment failed", err)
	}
	return result, nil
}

// Expire updates the ttl of an existing key; NoExpiration removes it.
func (r *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) bool {
	if r.config.Disabled || !ValidKey(key) {
		return false
	}

	var ok bool
	err := r.client.Do(ctx, "expire", func(ctx context.Context, rdb *goredis.Client) error {
		var res *goredis.BoolCmd
		if ttl <= 0 {
			res = rdb.Persist(ctx, r.prefixed(key))
		} else {
			res = rdb.Expire(ctx, r.prefixed(key), ttl)
		}
		v, err := res.Result()
		ok = v
		return err
	})
	if err != nil {
		r.fail("expire", key, err)
		return false
	}
	return ok
}

// TTL returns the remaining lifetime reported by Redis. Redis answers -2 for
// absent keys and -1 for keys without expiry; both are mapped onto the
// contract's sentinels.
func (r *RedisCache) TTL(ctx context.Context, key string) (time.Duration, bool) {
	if r.config.Disabled || !ValidKey(key) {
		return 0, false
	}

	var d time.Duration
	err := r.client.Do(ctx, "ttl", func(ctx context.Context, rdb *goredis.Client) error {
		v, err := rdb.TTL(ctx, r.prefixed(key)).Result()
		d = v
		return err
	})
	if err != nil {
		r.fail("ttl", key, err)
		return 0, false
	}

	switch d {
	case -2:
		return 0, false
	case -1:
		return NoTTL, true
	default:
		return d, true
	}
}

// Stats counts the namespace's keys with SCAN and snapshots the counters.
// The entry count is advisory; Redis expires keys on its own schedule.
func (r *RedisCache) Stats() Stats {
	entries := 0
	if !r.config.Disabled {
		ctx, cancel := context.WithTimeout(context.Background(), r.client.OpTimeout())
		defer cancel()

		err := r.client.Do(ctx, "stats", func(ctx context.Context, rdb *goredis.Client) error {
			var cursor uint64
			for {
				keys, next, err := rdb.Scan(ctx, cursor, r.prefixed("*"), 100).Result()
				if err != nil {
					return err
				}
				entries += len(keys)
				cursor = next
				if cursor == 0 {
					return nil
				}
			}
		})
		if err != nil {
			r.counters.failed()
		}
	}
	return r.counters.snapshot(entries, int64(entries))
}

// HealthCheck pings the server and runs a set/get/delete smoke test within
// the client's operation deadline. Failures downgrade the status, they never
// propagate.
func (r *RedisCache) HealthCheck(ctx context.Context) Health {
	if r.config.Disabled {
		return Health{Status: StatusDisabled, Backend: BackendRedis}
	}

	detail := map[string]interface{}{
		"state": r.client.State().String(),
	}

	if err := r.client.Ping(ctx); err != nil {
		detail["error"] = err.Error()
		return Health{Status: StatusUnhealthy, Backend: BackendRedis, Detail: detail}
	}

	probe := r.prefixed("__health__")
	err := r.client.Do(ctx, "health", func(ctx context.Context, rdb *goredis.Client) error {
		if err := rdb.Set(ctx, probe, "ok", 10*time.Second).Err(); err != nil {
			return err
		}
		if _, err := rdb.Get(ctx, probe).Result(); err != nil {
			return err
		}
		return rdb.Del(ctx, probe).Err()
	})
	if err != nil {
		detail["error"] = err.Error()
		return Health{Status: StatusDegraded, Backend: BackendRedis, Detail: detail}
	}

	return Health{Status: StatusHealthy, Backend: BackendRedis, Detail: detail}
}
