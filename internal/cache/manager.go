package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "chatbot-cache/internal/common/errors"
	"chatbot-cache/internal/common/logging"
	redisclient "chatbot-cache/internal/redis"
)

// Purpose names a logical cache. Each purpose gets its own configuration
// derived from the manager's base config, and repeated requests for a
// purpose return the same instance.
type Purpose string

const (
	// PurposeGeneral is the default shared cache
	PurposeGeneral Purpose = "general"
	// PurposeSession holds short-lived session-scoped data
	PurposeSession Purpose = "session"
	// PurposePersistent holds durable reference data
	PurposePersistent Purpose = "persistent"
	// PurposeRegistry caches registry entities and list pages
	PurposeRegistry Purpose = "registry"
	// PurposeWorkflow caches compiled workflow artifacts
	PurposeWorkflow Purpose = "workflow"
	// PurposeTool caches tool resolution results
	PurposeTool Purpose = "tool"
)

// Settings configures a Manager. Backend is a single process-wide choice
// applied to every purpose.
type Settings struct {
	Backend Backend
	Base    Config
	Redis   *redisclient.Client
	// SingleFlight dedupes concurrent GetOrSet loads per key. Off by
	// default: the historical behavior lets concurrent misses recompute.
	SingleFlight bool
}

// Manager is the cache registry and factory. It is constructed once at
// process start and handed to collaborators; there is no package-level
// instance.
type Manager struct {
	settings Settings

	mu        sync.Mutex
	instances map[string]instanceEntry
	flights   singleflight.Group
}

type instanceEntry struct {
	cache  Cache
	config Config
}

// NewManager validates settings and creates an empty registry.
func NewManager(settings Settings) (*Manager, error) {
	if settings.Backend == "" {
		settings.Backend = BackendMemory
	}
	switch settings.Backend {
	case BackendMemory:
	case BackendRedis, BackendMultiTier:
		if settings.Redis == nil {
			return nil, apperrors.ConfigError("redis client required for backend " + string(settings.Backend))
		}
	default:
		return nil, apperrors.ConfigError("unknown cache backend: " + string(settings.Backend))
	}

	if (settings.Base == Config{}) {
		settings.Base = DefaultConfig()
	}
	settings.Base = settings.Base.withDefaults()

	return &Manager{
		settings:  settings,
		instances: make(map[string]instanceEntry),
	}, nil
}

// CacheFor returns the cache instance for an arbitrary configuration,
// constructing it on first request. Configs with the same identity share
// one instance, which keeps in-process state and promotion counters alive
// across callers.
func (m *Manager) CacheFor(config Config) (Cache, error) {
	config = config.withDefaults()
	id := config.fingerprint()

	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.instances[id]; ok {
		return entry.cache, nil
	}

	c, err := m.build(config)
	if err != nil {
		return nil, err
	}
	m.instances[id] = instanceEntry{cache: c, config: config}

	logging.Debug("cache instance created",
		logging.String("backend", string(m.settings.Backend)),
		logging.String("prefix", config.KeyPrefix),
	)
	return c, nil
}

func (m *Manager) build(config Config) (Cache, error) {
	switch m.settings.Backend {
	case BackendMemory:
		return NewMemoryCache(config), nil
	case BackendRedis:
		return NewRedisCache(config, m.settings.Redis), nil
	case BackendMultiTier:
		return NewTieredCache(config, m.settings.Redis), nil
	default:
		return nil, apperrors.ConfigError("unknown cache backend: " + string(m.settings.Backend))
	}
}

// For returns the cache for a logical purpose.
func (m *Manager) For(purpose Purpose) (Cache, error) {
	return m.CacheFor(m.configFor(purpose))
}

// configFor derives a purpose's configuration from the base config.
// Session data is short-lived and small; persistent reference data lives
// long and gets extra room.
func (m *Manager) configFor(purpose Purpose) Config {
	cfg := m.settings.Base

	switch purpose {
	case PurposeSession:
		if cfg.DefaultTTL > 0 {
			cfg.DefaultTTL /= 2
		} else {
			cfg.DefaultTTL = 30 * time.Minute
		}
		if cfg.MaxSize > 1 {
			cfg.MaxSize /= 2
		}
	case PurposePersistent:
		if cfg.DefaultTTL > 0 {
			cfg.DefaultTTL *= 4
		}
		cfg.MaxSize *= 2
	case PurposeRegistry:
		if cfg.DefaultTTL > 0 {
			cfg.DefaultTTL *= 2
		}
	}

	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = string(purpose)
	} else {
		cfg.KeyPrefix = cfg.KeyPrefix + ":" + string(purpose)
	}
	return cfg
}

// GeneralCache returns the default shared cache.
func (m *Manager) GeneralCache() (Cache, error) { return m.For(PurposeGeneral) }

// SessionCache returns the cache for session-scoped data.
func (m *Manager) SessionCache() (Cache, error) { return m.For(PurposeSession) }

// PersistentCache returns the cache for durable reference data.
func (m *Manager) PersistentCache() (Cache, error) { return m.For(PurposePersistent) }

// RegistryCache returns the cache for registry entities.
func (m *Manager) RegistryCache() (Cache, error) { return m.For(PurposeRegistry) }

// WorkflowCache returns the cache for compiled workflow artifacts.
func (m *Manager) WorkflowCache() (Cache, error) { return m.For(PurposeWorkflow) }

// ToolCache returns the cache for tool resolution results.
func (m *Manager) ToolCache() (Cache, error) { return m.For(PurposeTool) }

// GetOrSet loads through the manager, deduplicating concurrent loads per
// key when SingleFlight is enabled. Flights are scoped to the cache
// instance: the same logical key in two purposes loads independently.
func (m *Manager) GetOrSet(ctx context.Context, c Cache, key string, ttl time.Duration, load LoadFunc) (interface{}, error) {
	if !m.settings.SingleFlight {
		return GetOrSet(ctx, c, key, ttl, load)
	}

	value, err, _ := m.flights.Do(fmt.Sprintf("%p:%s", c, key), func() (interface{}, error) {
		return GetOrSet(ctx, c, key, ttl, load)
	})
	return value, err
}

// RegisterWith adds every constructed instance that supports sweeping to
// the janitor, named by its key prefix.
func (m *Manager) RegisterWith(j *Janitor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entry := range m.instances {
		if s, ok := entry.cache.(Sweeper); ok {
			j.Register(entry.config.KeyPrefix, s)
		}
	}
}
