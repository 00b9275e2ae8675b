package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/memgate/memgate/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// maxKeyLength bounds derived keys; longer keys collapse to a content hash.
const maxKeyLength = 256

const defaultScanCount = 100

// GenerateKey builds a deterministic cache key from a prefix, positional
// arguments and named arguments. Named arguments are sorted by name so that
// identical logical inputs always yield the identical key. Keys exceeding
// maxKeyLength are replaced by "<prefix>:<sha256 of the full key>".
func GenerateKey(prefix string, args []string, kwargs map[string]string) string {
	parts := make([]string, 0, 1+len(args)+len(kwargs))
	parts = append(parts, prefix)
	parts = append(parts, args...)
	if len(kwargs) > 0 {
		names := make([]string, 0, len(kwargs))
		for name := range kwargs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			parts = append(parts, name+":"+kwargs[name])
		}
	}
	key := strings.Join(parts, ":")
	if len(key) > maxKeyLength {
		sum := sha256.Sum256([]byte(key))
		key = prefix + ":" + hex.EncodeToString(sum[:])
	}
	return key
}

// Store provides fail-soft access to a Redis-backed key-value cache with
// JSON-serialized values. When the connection cannot be established the store
// degrades to a disabled state: every operation becomes a no-op returning its
// safe default, and callers proceed without caching.
type Store struct {
	client    RedisInterface
	closer    func() error
	scanCount int64
}

// NewStore connects to Redis and returns a ready Store. On connection failure
// it logs a warning once and returns a disabled Store instead of an error.
func NewStore(ctx context.Context, cfg *Config) *Store {
	log := logger.FromContext(ctx).With("component", "cache_store")
	r, err := NewRedis(ctx, cfg)
	if err != nil {
		log.Warn("Redis connection failed, cache disabled", "error", err)
		return &Store{}
	}
	scanCount := int64(defaultScanCount)
	if cfg.KeyScanCount > 0 {
		scanCount = int64(cfg.KeyScanCount)
	}
	return &Store{client: r, closer: r.Close, scanCount: scanCount}
}

// NewStoreWithClient builds a Store on top of an existing client. Used by
// tests and by callers that manage the connection themselves.
func NewStoreWithClient(client RedisInterface) *Store {
	return &Store{client: client, scanCount: defaultScanCount}
}

// Enabled reports whether the store has a live connection.
func (s *Store) Enabled() bool {
	return s.client != nil
}

// Get retrieves the value stored at key and JSON-decodes it into dest.
// Returns false on a miss, on a disabled store, and on any transport or
// decoding error; errors are logged and never propagated.
func (s *Store) Get(ctx context.Context, key string, dest any) bool {
	if s.client == nil {
		return false
	}
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		logger.FromContext(ctx).Error("cache get failed", "key", key, "error", err)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		logger.FromContext(ctx).Error("cache value decode failed", "key", key, "error", err)
		return false
	}
	return true
}

// Set JSON-encodes value and stores it at key. A ttl <= 0 stores the value
// without expiry. Returns false on any failure instead of raising.
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if s.client == nil {
		return false
	}
	serialized, err := json.Marshal(value)
	if err != nil {
		logger.FromContext(ctx).Error("cache value encode failed", "key", key, "error", err)
		return false
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, serialized, ttl).Err(); err != nil {
		logger.FromContext(ctx).Error("cache set failed", "key", key, "error", err)
		return false
	}
	return true
}

// Delete removes key from the cache.
func (s *Store) Delete(ctx context.Context, key string) bool {
	if s.client == nil {
		return false
	}
	if err := s.client.Del(ctx, key).Err(); err != nil {
		logger.FromContext(ctx).Error("cache delete failed", "key", key, "error", err)
		return false
	}
	return true
}

// Keys returns all keys matching the glob pattern, iterating with SCAN to
// avoid blocking the server. Returns nil when disabled or on error.
func (s *Store) Keys(ctx context.Context, pattern string) []string {
	if s.client == nil {
		return nil
	}
	var keys []string
	var cursor uint64
	for {
		batch, next, err := s.client.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			logger.FromContext(ctx).Error("cache key scan failed", "pattern", pattern, "error", err)
			return nil
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys
		}
		cursor = next
	}
}

// ClearPattern deletes all keys matching the glob pattern and returns the
// number of keys removed. Returns 0 when disabled or on error.
func (s *Store) ClearPattern(ctx context.Context, pattern string) int64 {
	if s.client == nil {
		return 0
	}
	keys := s.Keys(ctx, pattern)
	if len(keys) == 0 {
		return 0
	}
	removed, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		logger.FromContext(ctx).Error("cache pattern clear failed", "pattern", pattern, "error", err)
		return 0
	}
	return removed
}

// ClearAll flushes the entire cache database.
func (s *Store) ClearAll(ctx context.Context) bool {
	if s.client == nil {
		return false
	}
	if err := s.client.FlushDB(ctx).Err(); err != nil {
		logger.FromContext(ctx).Error("cache flush failed", "error", err)
		return false
	}
	return true
}

// Incr atomically increments the integer stored at key, returning the new
// value. The boolean is false when disabled or on error.
func (s *Store) Incr(ctx context.Context, key string) (int64, bool) {
	if s.client == nil {
		return 0, false
	}
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		logger.FromContext(ctx).Error("cache increment failed", "key", key, "error", err)
		return 0, false
	}
	return n, true
}

// HealthCheck verifies the backing store is usable: a ping followed by a
// set/get/del round trip on a short-lived probe key.
func (s *Store) HealthCheck(ctx context.Context) error {
	if s.client == nil {
		return ErrDisabled
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	testKey := "health_check_test"
	testValue := "test_value"
	if err := s.client.Set(ctx, testKey, testValue, 10*time.Second).Err(); err != nil {
		return fmt.Errorf("set operation failed: %w", err)
	}
	result, err := s.client.Get(ctx, testKey).Result()
	if err != nil {
		return fmt.Errorf("get operation failed: %w", err)
	}
	if result != testValue {
		return fmt.Errorf("get result mismatch: expected %s, got %s", testValue, result)
	}
	if err := s.client.Del(ctx, testKey).Err(); err != nil {
		logger.FromContext(ctx).Debug("failed to clean up test key", "key", testKey, "error", err)
	}
	return nil
}

// Close releases the underlying connection when the store owns one.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
