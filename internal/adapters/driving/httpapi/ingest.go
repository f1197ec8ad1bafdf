package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

type ingestRequest struct {
	Source   string         `json:"source" binding:"required"`
	Title    string         `json:"title" binding:"required"`
	Exam     string         `json:"exam" binding:"required"`
	Subject  string         `json:"subject"`
	Topic    string         `json:"topic"`
	DocType  string         `json:"doc_type"`
	Year     int            `json:"year"`
	Metadata map[string]any `json:"metadata"`
}

type ingestResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

type jobStatusResponse struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// handleIngest accepts a document for background ingestion and returns
// a job receipt without waiting for the pipeline.
func (s *Server) handleIngest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	receipt, err := s.ingest.Register(c.Request.Context(), domain.IngestRequest{
		Source:   req.Source,
		Title:    req.Title,
		Exam:     req.Exam,
		Subject:  req.Subject,
		Topic:    req.Topic,
		DocType:  req.DocType,
		Year:     req.Year,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, ingestResponse{
		DocumentID: receipt.DocumentID,
		Status:     string(receipt.Status),
	})
}

func (s *Server) handleIngestStatus(c *gin.Context) {
	job, err := s.ingest.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, jobStatusResponse{
		DocumentID: job.DocumentID,
		Status:     string(job.Status),
		Error:      job.Error,
		StartedAt:  formatTime(job.StartedAt),
		FinishedAt: formatTime(job.FinishedAt),
		UpdatedAt:  formatTime(job.UpdatedAt),
	})
}

func (s *Server) handleReingest(c *gin.Context) {
	if err := s.ingest.Reingest(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ingestResponse{
		DocumentID: c.Param("id"),
		Status:     string(domain.JobQueued),
	})
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	if err := s.ingest.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
