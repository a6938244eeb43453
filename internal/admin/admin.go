// Package admin serves the read-only HTTP status endpoint of the host.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/eternalApril/actorhost/internal/config"
	"github.com/eternalApril/actorhost/internal/gc"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Source is what the endpoint reports on
type Source interface {
	GCSettings() config.GCSettings
	GCStats() gc.Stats
	ActorCount() int
}

type healthResponse struct {
	Status string `json:"status"`
}

type gcResponse struct {
	ScanIntervalSeconds int64    `json:"scan_interval_seconds"`
	IdleTimeoutSeconds  int64    `json:"idle_timeout_seconds"`
	IdleScans           int64    `json:"idle_scans"`
	Stats               gc.Stats `json:"stats"`
}

type actorsResponse struct {
	Count int `json:"count"`
}

// NewRouter builds the gin engine with every route registered
func NewRouter(src Source, logger *zap.Logger) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, healthResponse{Status: "ok"})
	})

	v1 := engine.Group("/v1")
	v1.GET("/gc", func(c *gin.Context) {
		s := src.GCSettings()
		c.JSON(http.StatusOK, gcResponse{
			ScanIntervalSeconds: s.ScanIntervalInSeconds(),
			IdleTimeoutSeconds:  s.IdleTimeoutInSeconds(),
			IdleScans:           s.IdleScans(),
			Stats:               src.GCStats(),
		})
	})
	v1.GET("/actors", func(c *gin.Context) {
		c.JSON(http.StatusOK, actorsResponse{Count: src.ActorCount()})
	})

	return engine
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		if logger.Core().Enabled(zap.DebugLevel) {
			logger.Debug("admin request",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Int("status", c.Writer.Status()),
				zap.Duration("took", time.Since(start)),
			)
		}
	}
}

// Server wraps the HTTP server of the endpoint
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// New creates the endpoint listening on addr
func New(addr string, src Source, logger *zap.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(src, logger),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Serve handles requests on l until Shutdown. A shutdown is not reported as an error
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("admin endpoint listening", zap.String("address", l.Addr().String()))
	if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the endpoint, waiting for requests in flight until ctx expires
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
