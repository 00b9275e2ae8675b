// Package server hosts the timestamp-synchronization HTTP surface and the
// operational health endpoint over the cache and sync components.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/memgate/memgate/engine/infra/cache"
	"github.com/memgate/memgate/engine/timesync"
	syncrouter "github.com/memgate/memgate/engine/timesync/router"
	"github.com/memgate/memgate/pkg/config"
	"github.com/memgate/memgate/pkg/logger"
)

const serviceName = "memgate-timesync"

// Server wires the tracker and cache store behind an HTTP listener.
type Server struct {
	config  *config.Config
	store   *cache.Store
	tracker *timesync.Tracker
}

// NewServer creates a server over the given dependencies.
func NewServer(cfg *config.Config, store *cache.Store, tracker *timesync.Tracker) *Server {
	return &Server{config: cfg, store: store, tracker: tracker}
}

// Router builds the gin engine with the full middleware chain and routes.
func (s *Server) Router(ctx context.Context) *gin.Engine {
	if s.config.Runtime.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	log := logger.FromContext(ctx)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestIDMiddleware(log))
	engine.Use(LoggerMiddleware(log))
	if s.config.Server.CORSEnabled {
		engine.Use(CORSMiddleware(s.config.Server.CORS))
	}
	if !s.config.RateLimit.HTTPDisabled {
		engine.Use(RateLimitMiddleware(s.config.RateLimit))
	}
	engine.GET("/health", s.healthHandler)
	syncrouter.RegisterRoutes(engine.Group(""), s.tracker)
	return engine
}

// healthHandler reports service health. A disabled cache store is degraded,
// not unhealthy: the service keeps working without caching.
func (s *Server) healthHandler(c *gin.Context) {
	redisStatus := "healthy"
	if err := s.store.HealthCheck(c.Request.Context()); err != nil {
		if errors.Is(err, cache.ErrDisabled) {
			redisStatus = "disabled"
		} else {
			redisStatus = "unhealthy"
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":              "ok",
		"service":             serviceName,
		"registered_services": s.tracker.Len(),
		"redis":               redisStatus,
	})
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully within
// the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(ctx),
		ReadHeaderTimeout: s.config.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownTimeout := s.config.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	return nil
}
