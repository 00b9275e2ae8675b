package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix is stripped from environment variables before mapping them onto
// configuration paths, e.g. MEMGATE_REDIS_DIAL_TIMEOUT -> redis.dial_timeout.
const envPrefix = "MEMGATE_"

// envToPath holds explicit mappings for env vars whose names do not split
// cleanly on the first underscore.
var envToPath = map[string]string{
	"MEMGATE_SERVER_SHUTDOWN_TIMEOUT":       "server.shutdown_timeout",
	"MEMGATE_SERVER_CORS_ENABLED":           "server.cors_enabled",
	"MEMGATE_SERVER_CORS_ALLOWED_ORIGINS":   "server.cors.allowed_origins",
	"MEMGATE_SERVER_CORS_ALLOW_CREDENTIALS": "server.cors.allow_credentials",
	"MEMGATE_SERVER_CORS_MAX_AGE":           "server.cors.max_age",
	"MEMGATE_REDIS_POOL_SIZE":               "redis.pool_size",
	"MEMGATE_REDIS_DIAL_TIMEOUT":            "redis.dial_timeout",
	"MEMGATE_REDIS_READ_TIMEOUT":            "redis.read_timeout",
	"MEMGATE_REDIS_WRITE_TIMEOUT":           "redis.write_timeout",
	"MEMGATE_REDIS_PING_TIMEOUT":            "redis.ping_timeout",
	"MEMGATE_CACHE_DEFAULT_TTL":             "cache.default_ttl",
	"MEMGATE_CACHE_SEARCH_TTL":              "cache.search_ttl",
	"MEMGATE_CACHE_MEMORY_TTL":              "cache.memory_ttl",
	"MEMGATE_CACHE_STATS_TTL":               "cache.stats_ttl",
	"MEMGATE_CACHE_KEY_SCAN_COUNT":          "cache.key_scan_count",
	"MEMGATE_RATELIMIT_MAX_REQUESTS":        "ratelimit.max_requests",
	"MEMGATE_RATELIMIT_FAIL_CLOSED":         "ratelimit.fail_closed",
	"MEMGATE_RATELIMIT_HTTP_GLOBAL":         "ratelimit.http_global",
	"MEMGATE_RATELIMIT_HTTP_PERIOD":         "ratelimit.http_period",
	"MEMGATE_RATELIMIT_HTTP_DISABLED":       "ratelimit.http_disabled",
	"MEMGATE_SYNC_STALE_THRESHOLD":          "sync.stale_threshold",
	"MEMGATE_RUNTIME_LOG_LEVEL":             "runtime.log_level",
	"MEMGATE_RUNTIME_LOG_JSON":              "runtime.log_json",
}

// transformEnvKey converts environment variable names to koanf paths.
// For example: MEMGATE_REDIS_HOST -> redis.host
func transformEnvKey(key string) string {
	key = strings.TrimPrefix(key, envPrefix)
	key = strings.ToLower(key)
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' })
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

// Load builds the configuration from defaults overlaid with MEMGATE_*
// environment variables and validates the result.
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			if configPath, exists := envToPath[key]; exists {
				return configPath, value
			}
			return transformEnvKey(key), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}
