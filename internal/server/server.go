// Package server exposes the fact-check service over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/metrics"
	"github.com/ppiankov/chainbreaker/internal/rumour"
	"github.com/ppiankov/chainbreaker/internal/store"
)

const (
	shutdownTimeout       = 10 * time.Second
	readHeaderTimeout     = 10 * time.Second
	defaultDashboardLimit = 100
)

// FactChecker answers one inbound claim
type FactChecker interface {
	Handle(ctx context.Context, req rumour.Request) (*rumour.Result, error)
}

// DashboardSource lists recent activity
type DashboardSource interface {
	Dashboard(ctx context.Context, limit int) (*store.Snapshot, error)
}

// Options configures the server
type Options struct {
	Addr           string
	Mode           string // gin mode
	DashboardLimit int
	Gatherer       prometheus.Gatherer // nil uses the default registry
}

// Server is the HTTP API
type Server struct {
	engine    *gin.Engine
	addr      string
	checker   FactChecker
	dashboard DashboardSource
	limit     int
	log       *logger.Logger
}

// New builds the router. dashboard may be nil to disable /api/dashboard.
func New(opts Options, checker FactChecker, dashboard DashboardSource, log *logger.Logger, m *metrics.Metrics) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}
	if opts.DashboardLimit <= 0 {
		opts.DashboardLimit = defaultDashboardLimit
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		engine:    gin.New(),
		addr:      opts.Addr,
		checker:   checker,
		dashboard: dashboard,
		limit:     opts.DashboardLimit,
		log:       log.With("component", "HTTPServer"),
	}

	s.engine.Use(gin.Recovery(), requestLogger(s.log), requestMetrics(m))

	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	api.POST("/factCheck", s.factCheck)
	if dashboard != nil {
		api.GET("/dashboard", s.getDashboard)
	}

	return s
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", s.addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) factCheck(c *gin.Context) {
	var req factCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	claim := req.claim()
	if claim == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	}
	chatID := req.chatID()
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "groupId or userId required"})
		return
	}

	// A client that hangs up must not abandon the rumour state half written
	ctx := context.WithoutCancel(c.Request.Context())

	res, err := s.checker.Handle(ctx, rumour.Request{
		Claim:       claim,
		ChatID:      chatID,
		DisplayName: req.displayName(),
		MessageID:   string(req.MessageID),
		Platform:    req.Platform,
	})
	switch {
	case errors.Is(err, rumour.ErrEmptyClaim):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message is required"})
		return
	case errors.Is(err, rumour.ErrMissingChat):
		c.JSON(http.StatusBadRequest, gin.H{"error": "groupId or userId required"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, factCheckResponse{
		Success:     true,
		Reused:      res.Reused,
		Regenerated: res.Regenerated,
		Broadcasted: res.Broadcasted,
		Reply:       res.Reply,
		Verdict:     res.Verdict,
		RumourID:    res.RumourID,
		Count:       res.Count,
		ToolCalls:   res.ToolCalls,
	})
}

func (s *Server) getDashboard(c *gin.Context) {
	snap, err := s.dashboard.Dashboard(c.Request.Context(), s.limit)
	if err != nil {
		s.log.Error("dashboard query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, snap)
}
