package config

import (
	"time"
)

// Config represents the complete configuration for the memgate service.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Redis     RedisConfig     `koanf:"redis"     validate:"required"`
	Cache     CacheConfig     `koanf:"cache"     validate:"required"`
	Session   SessionConfig   `koanf:"session"   validate:"required"`
	RateLimit RateLimitConfig `koanf:"ratelimit" validate:"required"`
	Sync      SyncConfig      `koanf:"sync"      validate:"required"`
	Runtime   RuntimeConfig   `koanf:"runtime"   validate:"required"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"             validate:"required"`
	Port            int           `koanf:"port"             validate:"min=1,max=65535"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSEnabled     bool          `koanf:"cors_enabled"`
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"`
	AllowCredentials bool     `koanf:"allow_credentials"`
	MaxAge           int      `koanf:"max_age"`
}

// RedisConfig contains Redis connection configuration. URL takes precedence
// over Host/Port when both are set.
type RedisConfig struct {
	URL          string        `koanf:"url"`
	Host         string        `koanf:"host"`
	Port         string        `koanf:"port"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"            validate:"min=0"`
	PoolSize     int           `koanf:"pool_size"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	PingTimeout  time.Duration `koanf:"ping_timeout"`
}

// CacheConfig contains cache behavior configuration.
type CacheConfig struct {
	DefaultTTL   time.Duration `koanf:"default_ttl"`
	SearchTTL    time.Duration `koanf:"search_ttl"`
	MemoryTTL    time.Duration `koanf:"memory_ttl"`
	StatsTTL     time.Duration `koanf:"stats_ttl"`
	KeyScanCount int           `koanf:"key_scan_count" validate:"min=1"`
}

// SessionConfig contains session persistence configuration.
type SessionConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// RateLimitConfig contains rate limiting configuration. FailClosed controls
// behavior when Redis is unavailable: the default (false) allows all traffic.
type RateLimitConfig struct {
	MaxRequests  int           `koanf:"max_requests" validate:"min=1"`
	Window       time.Duration `koanf:"window"`
	FailClosed   bool          `koanf:"fail_closed"`
	HTTPGlobal   int64         `koanf:"http_global"  validate:"min=1"`
	HTTPPeriod   time.Duration `koanf:"http_period"`
	HTTPDisabled bool          `koanf:"http_disabled"`
}

// SyncConfig contains timestamp synchronization tracker configuration.
type SyncConfig struct {
	StaleThreshold time.Duration `koanf:"stale_threshold"`
	Services       []string      `koanf:"services"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment string `koanf:"environment" validate:"oneof=development staging production"`
	LogLevel    string `koanf:"log_level"   validate:"oneof=debug info warn error"`
	LogJSON     bool   `koanf:"log_json"`
}

// Default returns the default configuration. Cache and session TTLs follow
// the storage wire contract: sessions 7 days, memories 1 day, searches 1
// hour, stats 5 minutes.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8900,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSEnabled:     true,
			CORS: CORSConfig{
				AllowedOrigins:   []string{"*"},
				AllowCredentials: true,
				MaxAge:           86400,
			},
		},
		Redis: RedisConfig{
			Host:         "localhost",
			Port:         "6379",
			DB:           0,
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PingTimeout:  5 * time.Second,
		},
		Cache: CacheConfig{
			DefaultTTL:   time.Hour,
			SearchTTL:    time.Hour,
			MemoryTTL:    24 * time.Hour,
			StatsTTL:     5 * time.Minute,
			KeyScanCount: 100,
		},
		Session: SessionConfig{
			TTL: 7 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			MaxRequests: 100,
			Window:      time.Minute,
			FailClosed:  false,
			HTTPGlobal:  100,
			HTTPPeriod:  time.Minute,
		},
		Sync: SyncConfig{
			StaleThreshold: 60 * time.Second,
			Services: []string{
				"flask-ui",
				"fastapi-rest",
				"fastapi-mcp",
				"sse-server",
				"pgvector",
				"neo4j",
			},
		},
		Runtime: RuntimeConfig{
			Environment: "development",
			LogLevel:    "info",
			LogJSON:     false,
		},
	}
}
