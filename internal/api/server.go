package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/chat"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/indexer"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/storage"
)

// Answerer produces chat completions
type Answerer interface {
	Answer(ctx context.Context, req chat.AnswerRequest) (*chat.AnswerResponse, error)
}

// Refresher controls background embedding refreshes
type Refresher interface {
	RefreshAsync(mode indexer.Mode) bool
	Running() bool
	LastRun() *indexer.RunSummary
}

// StatusSource reports store statistics
type StatusSource interface {
	Status(ctx context.Context) (*storage.Status, error)
}

// Config contains HTTP server settings
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
}

// Server exposes the chat backend over HTTP
type Server struct {
	engine    *gin.Engine
	answerer  Answerer
	refresher Refresher
	status    StatusSource
	cfg       Config
	logger    *zap.Logger
}

// NewServer creates a server and registers its routes
func NewServer(answerer Answerer, refresher Refresher, status StatusSource, cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	engine := gin.New()
	engine.Use(RequestID(), RequestLogger(cfg.Logger), Recovery(cfg.Logger))

	s := &Server{
		engine:    engine,
		answerer:  answerer,
		refresher: refresher,
		status:    status,
		cfg:       cfg,
		logger:    cfg.Logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/completions", s.handleCompletions)
	s.engine.POST("/embeddings/refresh", s.handleRefresh)
	s.engine.GET("/status", s.handleStatus)
}

// Handler returns the routed handler, for tests and embedding in other servers
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.cfg.Port, err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", listener.Addr().String()))
		errCh <- srv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCompletions(c *gin.Context) {
	req := chat.AnswerRequest{
		Model:    c.Query("model"),
		Messages: c.QueryArray("messages"),
	}

	if raw := c.Query("temperature"); raw != "" {
		temperature, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid temperature %q", raw)})
			return
		}
		req.Temperature = &temperature
	}
	if raw := c.Query("maxTokens"); raw != "" {
		maxTokens, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid maxTokens %q", raw)})
			return
		}
		req.MaxTokens = &maxTokens
	}

	resp, err := s.answerer.Answer(c.Request.Context(), req)
	if err != nil {
		_ = c.Error(err)
		if chat.IsInvalidRequest(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"completion": resp.Choices})
}

func (s *Server) handleRefresh(c *gin.Context) {
	mode, err := indexer.ParseMode(c.DefaultQuery("mode", string(indexer.ModeIncremental)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	started := s.refresher.RefreshAsync(mode)
	c.JSON(http.StatusAccepted, gin.H{"started": started, "mode": mode})
}

// refreshStatus is the JSON form of the indexer state
type refreshStatus struct {
	Running bool            `json:"running"`
	LastRun *lastRunSummary `json:"last_run,omitempty"`
}

type lastRunSummary struct {
	Mode       string    `json:"mode"`
	Pending    int       `json:"pending"`
	Embedded   int       `json:"embedded"`
	Skipped    int       `json:"skipped"`
	Retries    int       `json:"retries"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

type statusResponse struct {
	Backend       string        `json:"backend"`
	SchemaVersion string        `json:"schema_version"`
	Entities      int           `json:"entities"`
	Embedded      int           `json:"embedded"`
	Pending       int           `json:"pending"`
	Refresh       refreshStatus `json:"refresh"`
}

func (s *Server) handleStatus(c *gin.Context) {
	st, err := s.status.Status(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, statusResponse{
		Backend:       st.Backend,
		SchemaVersion: st.SchemaVersion,
		Entities:      st.Entities,
		Embedded:      st.Embedded,
		Pending:       st.Pending,
		Refresh:       newRefreshStatus(s.refresher),
	})
}

// newRefreshStatus snapshots the refresher for display
func newRefreshStatus(r Refresher) refreshStatus {
	status := refreshStatus{Running: r.Running()}
	if last := r.LastRun(); last != nil {
		status.LastRun = &lastRunSummary{
			Mode:       last.Stats.Mode.String(),
			Pending:    last.Stats.Pending,
			Embedded:   last.Stats.Embedded,
			Skipped:    last.Stats.Skipped,
			Retries:    last.Stats.Retries,
			DurationMS: last.Stats.Duration.Milliseconds(),
			FinishedAt: last.FinishedAt,
		}
		if last.Err != nil {
			status.LastRun.Error = last.Err.Error()
		}
	}
	return status
}
