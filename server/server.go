// Package server exposes the gateway over HTTP. It owns the listener,
// the middleware chain, and the two operational endpoints: /healthz and
// /metrics. Every other path falls through to the module router, so the
// operational endpoints win when a module route collides with them.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/caffeineduck/wagi/config"
	"github.com/caffeineduck/wagi/gateway"
	"github.com/caffeineduck/wagi/metrics"
)

const shutdownGrace = 10 * time.Second

// Server serves module requests and operational endpoints.
type Server struct {
	cfg     *config.Settings
	gw      *gateway.Gateway
	logger  *zap.Logger
	metrics *metrics.Metrics
	router  *gin.Engine
}

// New assembles the middleware chain and routes. The gateway must
// already hold its modules; the server never loads anything itself.
func New(cfg *config.Settings, gw *gateway.Gateway, logger *zap.Logger, m *metrics.Metrics) *Server {
	if !cfg.LogDev {
		gin.SetMode(gin.ReleaseMode)
	}
	s := &Server{cfg: cfg, gw: gw, logger: logger, metrics: m}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))
	if m != nil {
		router.Use(Observe(m))
	}
	if cfg.EnableCORS {
		router.Use(cors.Default())
	}

	router.GET("/healthz", s.handleHealth)
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}
	router.NoRoute(s.handleModule)

	s.router = router
	return s
}

// Handler returns the HTTP handler, for tests and external embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on the configured address until ctx is canceled, then
// drains in-flight requests before returning.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s.router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	s.logger.Info("gateway listening",
		zap.String("addr", s.cfg.Addr),
		zap.Int("modules", len(s.gw.Modules())))
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"modules": len(s.gw.Modules()),
	})
}

func (s *Server) handleModule(c *gin.Context) {
	req, err := gateway.FromHTTP(c.Request)
	if err != nil {
		c.String(http.StatusBadRequest, "read request: %v", err)
		return
	}

	ctx := c.Request.Context()
	if s.cfg.ExecTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ExecTimeout)
		defer cancel()
	}

	resp, err := s.gw.Process(ctx, req)
	if req.Route != "" {
		c.Set(routeKey, req.Route)
	}
	if err != nil {
		status, msg := gateway.ErrorStatus(err)
		c.String(status, msg)
		return
	}
	if err := gateway.WriteHTTP(c.Writer, resp); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}
