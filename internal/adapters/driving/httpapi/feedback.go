package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

type feedbackRequest struct {
	ConversationID string         `json:"conversation_id" binding:"required"`
	Rating         *int           `json:"rating" binding:"required"`
	Notes          string         `json:"notes"`
	Payload        map[string]any `json:"payload"`
}

func (s *Server) handleFeedback(c *gin.Context) {
	if s.feedback == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feedback storage not configured"})
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	fb := &domain.Feedback{
		ConversationID: req.ConversationID,
		Rating:         *req.Rating,
		Notes:          req.Notes,
		Payload:        req.Payload,
	}
	if err := s.feedback.SaveFeedback(c.Request.Context(), fb); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": fb.ID})
}
