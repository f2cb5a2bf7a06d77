package pipelinehttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tribune/internal/logger"
	"tribune/internal/monitoring"
	"tribune/internal/orchestrator"

	"github.com/gin-gonic/gin"
)

// Server serves the pipeline HTTP surface: intake, decision/audit queries,
// health, and metrics.
type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(addr string, orch *orchestrator.Orchestrator) (*Server, error) {
	if orch == nil {
		return nil, errors.New("http server requires an orchestrator")
	}
	if addr == "" {
		addr = ":9985"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(monitoring.Handler()))
	NewRouter(orch).Register(router.Group("/api"))

	return &Server{addr: addr, router: router}, nil
}

// Run serves until ctx is done, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http server listening on %s", s.addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("http %s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
