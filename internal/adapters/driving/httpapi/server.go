// Package httpapi exposes the tutoring backend over HTTP. It is a thin
// driving adapter: handlers bind JSON, call the driving ports, and map
// domain errors to status codes. Chat streams over server-sent events.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
	"github.com/veda-labs/examtutor/internal/core/ports/driving"
	"github.com/veda-labs/examtutor/internal/logger"
)

// Config holds HTTP server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// ReadTimeout bounds request reads. Write timeouts are left off so
	// long chat streams are not cut mid-answer.
	ReadTimeout time.Duration
}

// Server wires the driving ports into a gin router.
type Server struct {
	config   Config
	ingest   driving.IngestService
	retrieve driving.RetrieveService
	chat     driving.ChatService
	feedback driven.FeedbackStore

	httpServer *http.Server
}

// NewServer creates the HTTP server. The feedback store may be nil;
// the feedback endpoint then returns 503.
func NewServer(config Config, ingest driving.IngestService, retrieve driving.RetrieveService, chat driving.ChatService, feedback driven.FeedbackStore) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 30 * time.Second
	}
	return &Server{
		config:   config,
		ingest:   ingest,
		retrieve: retrieve,
		chat:     chat,
		feedback: feedback,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLog())

	router.GET("/v1/health", s.handleHealth)

	router.POST("/v1/ingest", s.handleIngest)
	router.GET("/v1/ingest/:id/status", s.handleIngestStatus)
	router.POST("/v1/documents/:id/reingest", s.handleReingest)
	router.DELETE("/v1/documents/:id", s.handleDeleteDocument)

	router.POST("/v1/retrieve", s.handleRetrieve)
	router.POST("/v1/chat", s.handleChat)
	router.POST("/v1/feedback", s.handleFeedback)

	return router
}

// Start runs the server until the context is cancelled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:        s.config.Addr,
		Handler:     s.Router(),
		ReadTimeout: s.config.ReadTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http: listening on %s", s.config.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// requestLog logs one line per request after it completes.
func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http: %s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// writeError maps domain errors to HTTP status codes.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrJobConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrInference):
		logger.Warn("http: upstream provider failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream provider unavailable"})
	default:
		logger.Error("http: request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
