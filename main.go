package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chatbot-cache/internal/cache"
	"chatbot-cache/internal/common/logging"
	"chatbot-cache/internal/config"
	redisclient "chatbot-cache/internal/redis"
)

func main() {
	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logging
	logger, err := logging.NewZapLogger(logging.LogConfig{
		Level: logging.ParseLevel(cfg.LogLevel),
		Name:  "cache",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logging.SetGlobalLogger(logger)

	// Initialize the redis client for remote backends
	var client *redisclient.Client
	if cache.Backend(cfg.Backend) != cache.BackendMemory {
		client, err = redisclient.NewClient(cfg.RedisConfig())
		if err != nil {
			log.Fatalf("Failed to initialize redis client: %v", err)
		}
		defer client.Close()
	}

	// Build the cache registry and the per-purpose instances
	manager, err := cache.NewManager(cache.Settings{
		Backend:      cache.Backend(cfg.Backend),
		Base:         cfg.CacheConfig(),
		Redis:        client,
		SingleFlight: cfg.SingleFlight,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache manager: %v", err)
	}

	general, err := manager.GeneralCache()
	if err != nil {
		log.Fatalf("Failed to initialize general cache: %v", err)
	}
	for _, build := range []func() (cache.Cache, error){
		manager.SessionCache,
		manager.PersistentCache,
		manager.RegistryCache,
		manager.WorkflowCache,
		manager.ToolCache,
	} {
		if _, err := build(); err != nil {
			log.Fatalf("Failed to initialize cache: %v", err)
		}
	}

	// Start the expired-entry sweep over the in-process tiers
	janitor := cache.NewJanitor(cfg.SweepSchedule)
	manager.RegisterWith(janitor)
	if err := janitor.Start(); err != nil {
		log.Fatalf("Failed to start cache janitor: %v", err)
	}
	defer janitor.Stop()

	health := general.HealthCheck(context.Background())
	logging.Info("cache service started",
		logging.String("backend", cfg.Backend),
		logging.String("status", string(health.Status)),
	)

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stats := general.Stats()
	logging.Info("cache service shutting down",
		logging.Int64("hits", stats.Hits),
		logging.Int64("misses", stats.Misses),
		logging.Int64("evictions", stats.Evictions),
	)
}
