package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgate/memgate/engine/infra/cache"
	"github.com/memgate/memgate/engine/timesync"
	"github.com/memgate/memgate/pkg/config"
	"github.com/memgate/memgate/pkg/logger"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.RateLimit.HTTPDisabled = true
	if mutate != nil {
		mutate(cfg)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewStoreWithClient(client)
	tracker := timesync.NewTracker()
	srv := NewServer(cfg, store, tracker)
	ctx := logger.ContextWithLogger(t.Context(), logger.NewForTests())
	return srv, srv.Router(ctx)
}

func TestServer_Health(t *testing.T) {
	t.Run("Should report healthy redis and registered services", func(t *testing.T) {
		srv, engine := newTestServer(t, nil)
		srv.tracker.Register(t.Context(), "pgvector")

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp["status"])
		assert.Equal(t, "memgate-timesync", resp["service"])
		assert.Equal(t, float64(1), resp["registered_services"])
		assert.Equal(t, "healthy", resp["redis"])
	})

	t.Run("Should stay ok with the cache disabled", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		cfg := config.Default()
		cfg.RateLimit.HTTPDisabled = true
		srv := NewServer(cfg, &cache.Store{}, timesync.NewTracker())
		engine := srv.Router(logger.ContextWithLogger(t.Context(), logger.NewForTests()))

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "ok", resp["status"])
		assert.Equal(t, "disabled", resp["redis"])
	})
}

func TestServer_SyncRoutes(t *testing.T) {
	t.Run("Should serve the sync surface through the full middleware chain", func(t *testing.T) {
		_, engine := newTestServer(t, nil)

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sync/register/pgvector", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

		w = httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/status/pgvector", http.NoBody))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"is_stale":false`)
	})

	t.Run("Should echo a caller-provided request ID", func(t *testing.T) {
		_, engine := newTestServer(t, nil)
		req := httptest.NewRequest(http.MethodGet, "/sync/latest", http.NoBody)
		req.Header.Set(RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	})
}

func TestServer_GlobalRateLimit(t *testing.T) {
	t.Run("Should reject requests beyond the global limit", func(t *testing.T) {
		_, engine := newTestServer(t, func(cfg *config.Config) {
			cfg.RateLimit.HTTPDisabled = false
			cfg.RateLimit.HTTPGlobal = 2
			cfg.RateLimit.HTTPPeriod = time.Minute
		})

		var last int
		for range 3 {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync/latest", http.NoBody))
			last = w.Code
		}
		assert.Equal(t, http.StatusTooManyRequests, last)
	})
}

func TestServer_CORS(t *testing.T) {
	t.Run("Should allow any origin with the default configuration", func(t *testing.T) {
		_, engine := newTestServer(t, nil)
		req := httptest.NewRequest(http.MethodGet, "/sync/latest", http.NoBody)
		req.Header.Set("Origin", "https://anywhere.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, "https://anywhere.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Should allow configured origins", func(t *testing.T) {
		_, engine := newTestServer(t, func(cfg *config.Config) {
			cfg.Server.CORS.AllowedOrigins = []string{"https://ui.example.com"}
		})
		req := httptest.NewRequest(http.MethodGet, "/sync/latest", http.NoBody)
		req.Header.Set("Origin", "https://ui.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, "https://ui.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("Should short-circuit preflight requests", func(t *testing.T) {
		_, engine := newTestServer(t, func(cfg *config.Config) {
			cfg.Server.CORS.AllowedOrigins = []string{"*"}
		})
		req := httptest.NewRequest(http.MethodOptions, "/sync/latest", http.NoBody)
		req.Header.Set("Origin", "https://anywhere.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("Should not echo unknown origins", func(t *testing.T) {
		_, engine := newTestServer(t, func(cfg *config.Config) {
			cfg.Server.CORS.AllowedOrigins = []string{"https://ui.example.com"}
		})
		req := httptest.NewRequest(http.MethodGet, "/sync/latest", http.NoBody)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
