// Package memcache layers three independent cache namespaces for memory
// service data on top of the shared store: memory objects (memory:, 1 day),
// search results (search:, 1 hour) and statistics (stats:, 5 minutes). Each
// namespace has its own invalidation scope.
package memcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/memgate/memgate/engine/infra/cache"
	"github.com/memgate/memgate/pkg/config"
)

// Namespace TTL defaults per the storage wire contract.
const (
	DefaultSearchTTL = time.Hour
	DefaultMemoryTTL = 24 * time.Hour
	DefaultStatsTTL  = 5 * time.Minute
)

// Config carries per-namespace TTL overrides; zero values fall back to the
// package defaults.
type Config struct {
	SearchTTL time.Duration
	MemoryTTL time.Duration
	StatsTTL  time.Duration
}

// Cache is the memory-operation cache.
type Cache struct {
	store     *cache.Store
	searchTTL time.Duration
	memoryTTL time.Duration
	statsTTL  time.Duration
}

// New creates a memory cache over the given store.
func New(store *cache.Store, cfg *Config) *Cache {
	c := &Cache{
		store:     store,
		searchTTL: DefaultSearchTTL,
		memoryTTL: DefaultMemoryTTL,
		statsTTL:  DefaultStatsTTL,
	}
	if cfg != nil {
		if cfg.SearchTTL > 0 {
			c.searchTTL = cfg.SearchTTL
		}
		if cfg.MemoryTTL > 0 {
			c.memoryTTL = cfg.MemoryTTL
		}
		if cfg.StatsTTL > 0 {
			c.statsTTL = cfg.StatsTTL
		}
	}
	return c
}

// FromAppConfig creates a memory cache configured from the centralized app
// configuration.
func FromAppConfig(store *cache.Store, appConfig *config.Config) *Cache {
	return New(store, &Config{
		SearchTTL: appConfig.Cache.SearchTTL,
		MemoryTTL: appConfig.Cache.MemoryTTL,
		StatsTTL:  appConfig.Cache.StatsTTL,
	})
}

func searchKey(userID, query string) string {
	return cache.GenerateKey("search", []string{userID, query}, nil)
}

// CacheSearch stores search results for a user's query.
func (c *Cache) CacheSearch(ctx context.Context, userID, query string, results json.RawMessage) bool {
	return c.store.Set(ctx, searchKey(userID, query), results, c.searchTTL)
}

// CachedSearch retrieves cached search results for a user's query.
func (c *Cache) CachedSearch(ctx context.Context, userID, query string) (json.RawMessage, bool) {
	var results json.RawMessage
	if !c.store.Get(ctx, searchKey(userID, query), &results) {
		return nil, false
	}
	return results, true
}

// InvalidateSearches removes all cached searches for a user, or for all users
// when userID is "*". Returns the number of entries removed.
func (c *Cache) InvalidateSearches(ctx context.Context, userID string) int64 {
	pattern := "search:" + userID + ":*"
	if userID == "*" {
		pattern = "search:*"
	}
	return c.store.ClearPattern(ctx, pattern)
}

// CacheMemory stores a memory object.
func (c *Cache) CacheMemory(ctx context.Context, memoryID string, data json.RawMessage) bool {
	return c.store.Set(ctx, "memory:"+memoryID, data, c.memoryTTL)
}

// CachedMemory retrieves a cached memory object.
func (c *Cache) CachedMemory(ctx context.Context, memoryID string) (json.RawMessage, bool) {
	var data json.RawMessage
	if !c.store.Get(ctx, "memory:"+memoryID, &data) {
		return nil, false
	}
	return data, true
}

// InvalidateMemory removes a cached memory object.
func (c *Cache) InvalidateMemory(ctx context.Context, memoryID string) bool {
	return c.store.Delete(ctx, "memory:"+memoryID)
}

// CacheStats stores a statistics payload.
func (c *Cache) CacheStats(ctx context.Context, statsKey string, data json.RawMessage) bool {
	return c.store.Set(ctx, "stats:"+statsKey, data, c.statsTTL)
}

// CachedStats retrieves a cached statistics payload.
func (c *Cache) CachedStats(ctx context.Context, statsKey string) (json.RawMessage, bool) {
	var data json.RawMessage
	if !c.store.Get(ctx, "stats:"+statsKey, &data) {
		return nil, false
	}
	return data, true
}

// InvalidateStats removes the stats entry for statsKey, or every stats entry
// when statsKey is "*". Returns the number of entries removed.
func (c *Cache) InvalidateStats(ctx context.Context, statsKey string) int64 {
	pattern := "stats:" + statsKey
	if statsKey == "*" {
		pattern = "stats:*"
	}
	return c.store.ClearPattern(ctx, pattern)
}
