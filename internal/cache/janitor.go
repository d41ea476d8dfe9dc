package cache

import (
	"sync"

	"github.com/robfig/cron/v3"

	"chatbot-cache/internal/common/logging"
)

// Sweeper is implemented by caches that hold expired entries in process
// memory until something removes them. The Redis tier expires keys
// server-side and does not implement it.
type Sweeper interface {
	Cleanup() int
	Stats() Stats
}

// DefaultSweepSchedule runs the janitor every five minutes.
const DefaultSweepSchedule = "@every 5m"

// Janitor periodically sweeps expired entries out of registered caches.
// Expiry is enforced lazily on read either way; the janitor just keeps
// memory from accumulating entries nobody reads again.
type Janitor struct {
	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	targets map[string]Sweeper
}

// NewJanitor creates a janitor with a cron schedule spec; an empty spec
// uses DefaultSweepSchedule.
func NewJanitor(schedule string) *Janitor {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	return &Janitor{
		schedule: schedule,
		targets:  make(map[string]Sweeper),
	}
}

// Register adds a cache to the sweep rotation under a display name.
func (j *Janitor) Register(name string, target Sweeper) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.targets[name] = target
}

// Start schedules the sweep. It returns an error only for an invalid
// schedule spec.
func (j *Janitor) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(j.schedule, j.sweep); err != nil {
		return err
	}
	c.Start()
	j.cron = c

	logging.Info("cache janitor started", logging.String("schedule", j.schedule))
	return nil
}

// Stop halts the sweep schedule. A sweep already in flight finishes.
func (j *Janitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

// sweep runs one cleanup pass over all registered caches.
func (j *Janitor) sweep() {
	j.mu.Lock()
	targets := make(map[string]Sweeper, len(j.targets))
	for name, target := range j.targets {
		targets[name] = target
	}
	j.mu.Unlock()

	for name, target := range targets {
		removed := target.Cleanup()
		stats := target.Stats()
		logging.Debug("cache sweep completed",
			logging.String("cache", name),
			logging.Int("removed", removed),
			logging.Int("entries", stats.Entries),
			logging.Int64("evictions", stats.Evictions),
		)
	}
}
