// Package cache provides a unified caching layer with multiple backend support.
//
// It provides three backends behind one contract:
//
// 1. Memory cache - in-process, capacity-bounded, TTL-aware
//   - lru, ttl and random eviction policies
//   - lazy expiry on read plus an explicit Cleanup sweep
//   - one mutex per instance; compound operations are single critical sections
//
// 2. Redis cache - thin client to a Redis server
//   - JSON value serialization, server-side TTL enforcement
//   - bounded retry budget and circuit breaker on the connection
//   - every remote failure is logged, counted and converted to a miss or a
//     failed write (fail-open)
//
// 3. Tiered cache - memory L1 in front of Redis L2
//   - L2 hits are promoted into L1 after repeated access
//   - writes and deletes fan out to both tiers best-effort
//
// The Manager maps logical purposes (session, persistent, registry, ...) to
// per-purpose configurations and reuses constructed instances, so promotion
// counters and in-process state survive for the process lifetime.
//
// Usage:
//
//	client, _ := redis.NewClient(&redis.Config{Address: "localhost:6379"})
//	manager, _ := cache.NewManager(cache.Settings{
//		Backend: cache.BackendMultiTier,
//		Base:    cache.DefaultConfig(),
//		Redis:   client,
//	})
//
//	sessions, _ := manager.SessionCache()
//	sessions.Set(ctx, "user:42", profile, cache.KeepDefault)
//	if v, ok := sessions.Get(ctx, "user:42"); ok {
//		// ...
//	}
package cache
