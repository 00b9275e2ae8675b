package cache

import (
	"context"
	"time"

	"github.com/memgate/memgate/pkg/logger"
)

// Memoized wraps compute with cache lookups keyed by prefix and the call's
// arguments. On a hit the cached result is returned without invoking compute;
// on a miss compute runs and its result is stored for ttl before being
// returned. Compute errors are never cached.
//
// Population is not synchronized across concurrent callers: identical
// concurrent calls may each compute once. The cache is a performance
// optimization, not a consistency mechanism.
func Memoized[T any](
	store *Store,
	prefix string,
	ttl time.Duration,
	compute func(ctx context.Context, args ...string) (T, error),
) func(ctx context.Context, args ...string) (T, error) {
	return func(ctx context.Context, args ...string) (T, error) {
		key := GenerateKey(prefix, args, nil)
		log := logger.FromContext(ctx)
		var cached T
		if store.Get(ctx, key, &cached) {
			log.Debug("cache hit", "key", key)
			return cached, nil
		}
		log.Debug("cache miss", "key", key)
		result, err := compute(ctx, args...)
		if err != nil {
			var zero T
			return zero, err
		}
		store.Set(ctx, key, result, ttl)
		return result, nil
	}
}
