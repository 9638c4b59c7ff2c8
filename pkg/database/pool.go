package database

import (
	"fmt"
	"sync"
	"time"
)

// storeCache keeps one Store per process so warm serverless invocations reuse
// the connection instead of redialing Postgres on every request.
type storeCache struct {
	instance Store
	config   StoreConfig
	mu       sync.RWMutex
	lastUsed time.Time
}

var (
	globalCache *storeCache
	cacheMutex  sync.Mutex
)

// GetStore returns the process-wide Store, creating or replacing it when the
// configuration changed, the connection aged out or the health check fails.
func GetStore(config StoreConfig) (Store, error) {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	if globalCache == nil || shouldRecreate(globalCache, config) {
		if globalCache != nil && globalCache.instance != nil {
			globalCache.instance.Close()
		}
		instance, err := NewStore(config)
		if err != nil {
			return nil, err
		}
		globalCache = &storeCache{
			instance: instance,
			config:   config,
			lastUsed: time.Now(),
		}
	} else {
		globalCache.mu.Lock()
		globalCache.lastUsed = time.Now()
		globalCache.mu.Unlock()
	}

	return globalCache.instance, nil
}

func shouldRecreate(cache *storeCache, newConfig StoreConfig) bool {
	if cache == nil || cache.instance == nil {
		return true
	}
	if cache.config != newConfig {
		fmt.Printf("[info] store configuration changed, reconnecting\n")
		return true
	}

	cache.mu.RLock()
	expired := time.Since(cache.lastUsed) > 30*time.Minute
	cache.mu.RUnlock()
	if expired {
		return true
	}

	if err := cache.instance.HealthCheck(); err != nil {
		fmt.Printf("[warn] store health check failed, reconnecting: %v\n", err)
		return true
	}
	return false
}

// GetConnectionStats reports cache state for the debug endpoint.
func GetConnectionStats() map[string]interface{} {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	if globalCache == nil {
		return map[string]interface{}{
			"status":    "no_connection",
			"last_used": nil,
		}
	}

	globalCache.mu.RLock()
	lastUsed := globalCache.lastUsed
	globalCache.mu.RUnlock()

	return map[string]interface{}{
		"status":    "connected",
		"last_used": lastUsed.Format(time.RFC3339),
		"age":       time.Since(lastUsed).String(),
		"config": map[string]interface{}{
			"use_memory_db": globalCache.config.UseMemoryDB,
			"has_postgres":  globalCache.config.PostgresDSN != "",
		},
	}
}
