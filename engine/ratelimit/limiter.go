// Package ratelimit implements fixed-window request limiting backed by the
// shared cache store. Counters live under the ratelimit: namespace and reset
// implicitly when the window's TTL elapses.
package ratelimit

import (
	"context"
	"time"

	"github.com/memgate/memgate/engine/infra/cache"
	"github.com/memgate/memgate/pkg/config"
	"github.com/memgate/memgate/pkg/logger"
)

const keyPrefix = "ratelimit:"

// Config holds limiter defaults and the degraded-store policy.
type Config struct {
	// MaxRequests allowed within a single window.
	MaxRequests int
	// Window is the fixed counting window.
	Window time.Duration
	// FailClosed denies all requests when the store is unavailable. The
	// default fails open: availability over strict limiting.
	FailClosed bool
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxRequests: 100,
		Window:      time.Minute,
		FailClosed:  false,
	}
}

// Limiter is a best-effort fixed-window rate limiter.
//
// The check-then-increment sequence is not atomic: concurrent racers on the
// same identifier can each pass the check before any increment lands, over-
// admitting by at most racers-1 requests per window. This is an accepted
// property of the limiter, covered by tests, not a hard guarantee.
type Limiter struct {
	store  *cache.Store
	config *Config
}

// NewLimiter creates a limiter over the given store.
func NewLimiter(store *cache.Store, config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &Limiter{store: store, config: config}
}

// FromAppConfig creates a limiter configured from the centralized app
// configuration.
func FromAppConfig(store *cache.Store, appConfig *config.Config) *Limiter {
	return NewLimiter(store, &Config{
		MaxRequests: appConfig.RateLimit.MaxRequests,
		Window:      appConfig.RateLimit.Window,
		FailClosed:  appConfig.RateLimit.FailClosed,
	})
}

func counterKey(identifier string) string {
	return keyPrefix + identifier
}

// Allow reports whether a request from identifier is admitted under the
// configured defaults.
func (l *Limiter) Allow(ctx context.Context, identifier string) bool {
	return l.AllowN(ctx, identifier, l.config.MaxRequests, l.config.Window)
}

// AllowN reports whether a request from identifier is admitted given an
// explicit limit and window. The first request in a window initializes the
// counter to 1 with the window as TTL; requests at or above maxRequests are
// denied without incrementing.
func (l *Limiter) AllowN(ctx context.Context, identifier string, maxRequests int, window time.Duration) bool {
	if !l.store.Enabled() {
		if l.config.FailClosed {
			logger.FromContext(ctx).Warn("rate limit store unavailable, denying request",
				"identifier", identifier)
			return false
		}
		return true
	}
	key := counterKey(identifier)
	var current int
	if !l.store.Get(ctx, key, &current) {
		l.store.Set(ctx, key, 1, window)
		return true
	}
	if current >= maxRequests {
		return false
	}
	l.store.Incr(ctx, key)
	return true
}

// Remaining returns how many requests identifier may still make in the
// current window under the configured default limit.
func (l *Limiter) Remaining(ctx context.Context, identifier string) int {
	return l.RemainingN(ctx, identifier, l.config.MaxRequests)
}

// RemainingN returns the remaining budget for an explicit limit. A disabled
// store or an absent counter reports the full limit.
func (l *Limiter) RemainingN(ctx context.Context, identifier string, maxRequests int) int {
	if !l.store.Enabled() {
		return maxRequests
	}
	var current int
	if !l.store.Get(ctx, counterKey(identifier), &current) {
		return maxRequests
	}
	return max(0, maxRequests-current)
}
