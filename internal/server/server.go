// Package server exposes stored session logs over a read-only HTTP API,
// including a websocket that follows a log while its session is running.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"labagent/internal/logging"
	sessionstore "labagent/internal/session/filestore"
)

const (
	defaultAddr         = "127.0.0.1:8765"
	defaultPollInterval = 500 * time.Millisecond
	shutdownTimeout     = 5 * time.Second
)

// Config configures the server.
type Config struct {
	Addr         string
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// PollInterval is how often a streamed log is re-read.
	PollInterval time.Duration
	Version      string
	Logger       logging.Logger
}

// Server serves one log directory.
type Server struct {
	store        *sessionstore.Store
	engine       *gin.Engine
	httpServer   *http.Server
	upgrader     websocket.Upgrader
	pollInterval time.Duration
	version      string
	startTime    time.Time
	logger       logging.Logger
}

// New builds the server and its routes.
func New(store *sessionstore.Store, cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	s := &Server{
		store:        store,
		engine:       gin.New(),
		pollInterval: cfg.PollInterval,
		version:      cfg.Version,
		startTime:    time.Now(),
		logger:       logging.OrNop(cfg.Logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	s.engine.Use(gin.Recovery(), requestLogger(s.logger))
	if cfg.EnableCORS {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowMethods = []string{http.MethodGet, http.MethodOptions}
		corsConfig.AllowHeaders = []string{"Origin", "Accept", "X-Requested-With"}
		corsConfig.AllowWebSockets = true
		s.engine.Use(cors.New(corsConfig))
		s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	// WriteTimeout defaults to zero so streams are not cut off.
	s.httpServer = &http.Server{
		Addr:        cfg.Addr,
		Handler:     s.engine,
		ReadTimeout: cfg.ReadTimeout,
	}
	if cfg.WriteTimeout > 0 {
		s.httpServer.WriteTimeout = cfg.WriteTimeout
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)

	sessions := api.Group("/sessions")
	{
		sessions.GET("", s.listSessions)
		sessions.GET("/:id", s.getSession)
		sessions.GET("/:id/summary", s.getSummary)
		sessions.GET("/:id/export", s.exportSession)
		sessions.GET("/:id/stream", s.streamSession)
	}
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Serving session logs from %s on %s", s.store.Dir(), s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:  "ok",
			Version: s.version,
			Uptime:  time.Since(s.startTime).Round(time.Second).String(),
			LogDir:  s.store.Dir(),
		},
	})
}

func requestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, sessionstore.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sessionstore.ErrInvalidID):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.logger.Warn("request %s failed: %v", c.Request.URL.Path, err)
	}
	c.JSON(status, APIResponse{Success: false, Error: err.Error()})
}
