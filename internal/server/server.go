package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vidstat-lab/vidstat/internal/answer"
)

// Server exposes the question pipeline over HTTP alongside a health probe.
type Server struct {
	Engine  *gin.Engine
	Addr    string
	db      *sql.DB
	answers *answer.Service
}

func New(addr string, db *sql.DB, mode string, answers *answer.Service) *Server {
	// Set Gin mode based on configuration
	if mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(requestIDMiddleware())

	s := &Server{
		Engine:  r,
		Addr:    addr,
		db:      db,
		answers: answers,
	}

	// Health check endpoint with database connectivity verification
	r.GET("/health", s.healthHandler)

	v1 := r.Group("/v1")
	v1.POST("/ask", s.askHandler)

	return s
}

// requestIDMiddleware tags every request with an id that also lands on the
// response for cross-referencing logs.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

type askRequest struct {
	Text string `json:"text" binding:"required"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

// askHandler answers one natural-language question. The answer field is
// always an integer string; a question the system cannot interpret yields
// "0" with status 200.
func (s *Server) askHandler(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	reply, err := s.answers.Answer(c.Request.Context(), req.Text)
	if err != nil {
		slog.Error("Answer pipeline failed",
			"request_id", c.GetString("request_id"),
			"error", err)
		c.JSON(http.StatusInternalServerError, askResponse{Answer: answer.ZeroReply})
		return
	}

	c.JSON(http.StatusOK, askResponse{Answer: reply})
}

func (s *Server) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	// Check database connectivity
	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			slog.Error("Health check failed: database unreachable", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database unreachable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.Addr,
		Handler: s.Engine,
	}

	slog.Info("Starting HTTP Server...", "address", s.Addr)

	go func() {
		<-ctx.Done()
		slog.Info("Stopping HTTP Server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP Server forced to shutdown", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
