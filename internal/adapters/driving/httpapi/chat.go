package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/logger"
)

type chatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id"`
	Exam           string `json:"exam" binding:"required"`
	Mode           string `json:"mode"`
	Language       string `json:"language"`
	Subject        string `json:"subject"`
	Topic          string `json:"topic"`
	DocType        string `json:"doc_type"`
	Year           int    `json:"year"`

	// Stream selects server-sent events; defaults to true.
	Stream *bool `json:"stream"`
}

// handleChat answers a tutoring question. By default the response is a
// server-sent event stream of token events terminated by exactly one
// final or error event; with "stream": false it is a single JSON body.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	mode, err := domain.ParseTutorMode(req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	domainReq := domain.ChatRequest{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Exam:           req.Exam,
		Mode:           mode,
		Language:       req.Language,
		Subject:        req.Subject,
		Topic:          req.Topic,
		DocType:        req.DocType,
		Year:           req.Year,
	}

	if req.Stream != nil && !*req.Stream {
		answer, err := s.chat.Chat(c.Request.Context(), domainReq)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, answer)
		return
	}

	s.streamChat(c, domainReq)
}

func (s *Server) streamChat(c *gin.Context, req domain.ChatRequest) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	emitted := false
	err := s.chat.StreamChat(c.Request.Context(), req, func(event domain.StreamEvent) error {
		emitted = true
		switch event.Type {
		case domain.EventToken:
			c.SSEvent(domain.EventToken, gin.H{"delta": event.Delta})
		case domain.EventFinal:
			c.SSEvent(domain.EventFinal, event.Final)
		case domain.EventError:
			c.SSEvent(domain.EventError, gin.H{"error": event.Err})
		}
		c.Writer.Flush()
		if c.Request.Context().Err() != nil {
			return c.Request.Context().Err()
		}
		return nil
	})
	if err != nil {
		// A failure before any event, typically validation or retrieval,
		// still gets a terminal error event so the client never sees a
		// silently empty stream.
		if !emitted && c.Request.Context().Err() == nil {
			logger.Warn("http: chat stream failed before first event: %v", err)
			c.SSEvent(domain.EventError, gin.H{"error": streamErrorMessage(err)})
			c.Writer.Flush()
			return
		}
		// Headers are already out; the broken stream is the client's
		// failure signal.
		logger.Debug("http: chat stream aborted: %v", err)
	}
}

// streamErrorMessage hides internal detail the same way writeError does
// for JSON responses.
func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrJobConflict):
		return err.Error()
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrInference):
		return "upstream provider unavailable"
	default:
		return "internal error"
	}
}
