// Package api exposes the pipeline over HTTP: SSE streams for start and
// resume, a status endpoint, and health. Validation failures never begin a
// stream; they return plain JSON errors.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/assay-dev/assay/pkg/config"
	"github.com/assay-dev/assay/pkg/engine"
	"github.com/assay-dev/assay/pkg/version"
)

// Pinger reports snapshot database reachability. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	manager *engine.Manager
	cfg     *config.Config
	logger  *slog.Logger
	db      Pinger
}

// NewServer creates the API server.
func NewServer(manager *engine.Manager, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{manager: manager, cfg: cfg, logger: logger}
}

// SetDBPinger wires the snapshot database into the health check.
func (s *Server) SetDBPinger(db Pinger) {
	s.db = db
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(s.logger))

	r.GET("/healthz", s.Health)
	pipeline := r.Group("/pipeline")
	{
		pipeline.POST("/start", s.StartPipeline)
		pipeline.POST("/resume", s.ResumePipeline)
		pipeline.GET("/status", s.PipelineStatus)
	}
	return r
}

// Health handles GET /healthz.
func (s *Server) Health(c *gin.Context) {
	body := gin.H{
		"status":      "healthy",
		"version":     version.Full(),
		"resume_mode": s.cfg.ResumeMode,
		"active_runs": s.manager.RunCount(),
	}
	status := http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			body["database"] = "ok"
		}
	}
	c.JSON(status, body)
}
