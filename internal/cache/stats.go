package cache

import "sync/atomic"

// Stats is a snapshot of one cache instance's runtime counters.
type Stats struct {
	Hits      int64 `json:"cache_hits"`
	Misses    int64 `json:"cache_misses"`
	Evictions int64 `json:"evictions"`
	Errors    int64 `json:"errors"`
	Entries   int   `json:"total_entries"`
	// MemoryUsage is advisory: entry count for the memory tier, scanned
	// key count for the Redis tier.
	MemoryUsage int64 `json:"memory_usage"`
}

// HitRate returns hits / (hits + misses), or 0 before any request.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// statCounters accumulates per-instance counters. Hit/miss accounting is
// gated on the config's EnableStats; eviction and error counts are always
// recorded.
type statCounters struct {
	enabled   bool
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	errors    atomic.Int64
}

func (c *statCounters) hit() {
	if c.enabled {
		c.hits.Add(1)
	}
}

func (c *statCounters) miss() {
	if c.enabled {
		c.misses.Add(1)
	}
}

func (c *statCounters) evicted() {
	c.evictions.Add(1)
}

func (c *statCounters) failed() {
	c.errors.Add(1)
}

func (c *statCounters) snapshot(entries int, memory int64) Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evictions.Load(),
		Errors:      c.errors.Load(),
		Entries:     entries,
		MemoryUsage: memory,
	}
}
