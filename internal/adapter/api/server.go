// Package api serves the raw telemetry range endpoint and read access to the
// aggregated target store.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/wind-telemetry-etl/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
)

const requestTimeout = 15 * time.Second

// SampleQuerier reads raw telemetry rows.
type SampleQuerier interface {
	QuerySamples(ctx context.Context, start, end time.Time, vars []domain.Variable) ([]domain.RawSample, error)
}

// TargetReader reads the signal dimension and measurement facts.
type TargetReader interface {
	ListSignals(ctx context.Context) ([]domain.Signal, error)
	QueryMeasurements(ctx context.Context, signal string, start, end time.Time) ([]domain.Measurement, error)
}

// HealthInfo is reported by GET /health.
type HealthInfo struct {
	DBHost   string `json:"db_host"`
	SourceDB string `json:"source_db"`
	TargetDB string `json:"target_db"`
}

// Server is the REST API. Responses are gzip-compressed when the client
// accepts it.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	source     SampleQuerier
	target     TargetReader
	info       HealthInfo
	logger     *slog.Logger
}

// NewServer wires the routes. target may be nil, in which case the target
// read endpoints are not registered.
func NewServer(addr string, src SampleQuerier, tgt TargetReader, info HealthInfo, logger *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	s := &Server{
		engine: engine,
		source: src,
		target: tgt,
		info:   info,
		logger: logger,
	}
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      gzhttp.GzipHandler(engine),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.handleRoot)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/source/data", s.handleSourceData)

	if s.target != nil {
		s.engine.GET("/signals", s.handleListSignals)
		s.engine.GET("/measurements", s.handleMeasurements)
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("api server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the compressed handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
