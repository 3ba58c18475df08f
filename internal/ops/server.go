// Package ops serves health, readiness, status and metrics over HTTP.
package ops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"solana-sniper/internal/chain"
	"solana-sniper/internal/gate"
	"solana-sniper/internal/observability"
)

// SlotReader is the readiness probe against the RPC node.
type SlotReader interface {
	GetSlot(ctx context.Context) (int64, error)
}

// StreamStatus reports the event source state.
type StreamStatus interface {
	State() chain.State
}

// GateStatus reports the trade gate state.
type GateStatus interface {
	Status() gate.State
}

// Deps are the components the ops server reports on. Nil fields are omitted.
type Deps struct {
	RPC      SlotReader
	Stream   StreamStatus
	Gate     GateStatus
	Gatherer prometheus.Gatherer
	Strategy string
}

// Server is the ops HTTP server.
type Server struct {
	addr         string
	deps         Deps
	log          logrus.FieldLogger
	started      time.Time
	readyTimeout time.Duration
	engine       *gin.Engine
}

// Option configures Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// WithReadyTimeout bounds the readiness RPC call.
func WithReadyTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.readyTimeout = d
	}
}

// New creates the ops server listening on addr.
func New(addr string, deps Deps, opts ...Option) *Server {
	s := &Server{
		addr:         addr,
		deps:         deps,
		log:          logrus.StandardLogger(),
		started:      time.Now(),
		readyTimeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("component", "ops")

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(s.log, "/health", "/metrics"))

	engine.GET("/health", s.handleHealth)
	engine.GET("/ready", s.handleReady)
	engine.GET("/status", s.handleStatus)
	engine.GET("/metrics", gin.WrapH(observability.Handler(deps.Gatherer)))

	s.engine = engine
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.addr).Info("ops server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ops server shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (s *Server) handleReady(c *gin.Context) {
	if s.deps.RPC == nil {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.readyTimeout)
	defer cancel()

	slot, err := s.deps.RPC.GetSlot(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true, "slot": slot})
}

// StatusResponse is the JSON body of /status.
type StatusResponse struct {
	Status   string      `json:"status"`
	Uptime   string      `json:"uptime"`
	Stream   string      `json:"stream,omitempty"`
	Strategy string      `json:"strategy,omitempty"`
	Gate     *gate.State `json:"gate,omitempty"`
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := StatusResponse{
		Status:   "running",
		Uptime:   time.Since(s.started).Truncate(time.Second).String(),
		Strategy: s.deps.Strategy,
	}
	if s.deps.Stream != nil {
		resp.Stream = s.deps.Stream.State().String()
	}
	if s.deps.Gate != nil {
		st := s.deps.Gate.Status()
		resp.Gate = &st
	}
	c.JSON(http.StatusOK, resp)
}

// requestLogger logs each request except the skipped paths.
func requestLogger(log logrus.FieldLogger, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.Request.URL.Path
		if _, ok := skip[path]; ok {
			return
		}

		entry := log.WithFields(logrus.Fields{
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"method":  c.Request.Method,
			"path":    path,
			"client":  c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		case status >= http.StatusBadRequest:
			entry.Warn("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}
