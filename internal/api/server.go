// Package api implements the HTTP surface of the pipeline service:
// project lifecycle endpoints, the crawl outcome webhook, health, and
// metrics.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rankforge/crawlpipe/internal/config"
	"github.com/rankforge/crawlpipe/internal/logger"
)

// Server is the HTTP server wrapping the gin router.
type Server struct {
	cfg    config.ServerConfig
	engine *gin.Engine
	http   *http.Server
	log    logger.Interface
}

// NewServer creates the server and mounts all routes.
func NewServer(
	cfg config.ServerConfig,
	projects *ProjectsHandler,
	webhooks *WebhookHandler,
	registry prometheus.Gatherer,
	log logger.Interface,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())

	server := &Server{
		cfg:    cfg,
		engine: engine,
		log:    log.WithComponent("api"),
	}

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if registry != nil {
		engine.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/projects", projects.Create)
		v1.GET("/projects/:id", projects.Get)
		v1.POST("/projects/:id/analyze", projects.Analyze)
		v1.POST("/projects/:id/cancel", projects.Cancel)
		v1.PUT("/users/:userID/credentials/crawler", projects.PutCrawlerCredential)
		v1.POST("/webhooks/crawl", webhooks.HandleCrawlWebhook)
	}

	server.http = &http.Server{
		Addr:         cfg.Address,
		Handler:      engine,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return server
}

// Engine exposes the router for tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info("http server listening", "address", s.cfg.Address)

	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
