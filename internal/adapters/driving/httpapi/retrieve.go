package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

type retrieveRequest struct {
	Query           string   `json:"query" binding:"required"`
	Exam            string   `json:"exam" binding:"required"`
	Subject         string   `json:"subject"`
	Topic           string   `json:"topic"`
	DocType         string   `json:"doc_type"`
	Year            int      `json:"year"`
	ExcludeTags     []string `json:"exclude_tags"`
	MinQualityScore float64  `json:"min_quality_score"`
	TopK            int      `json:"top_k"`
	TopN            int      `json:"top_n"`
}

type retrievedChunk struct {
	ChunkID       string   `json:"chunk_id"`
	DocumentID    string   `json:"document_id"`
	Index         int      `json:"index"`
	Content       string   `json:"content"`
	SourceTitle   string   `json:"source_title"`
	Exam          string   `json:"exam"`
	Subject       string   `json:"subject"`
	Topic         string   `json:"topic"`
	DocType       string   `json:"doc_type"`
	Year          int      `json:"year,omitempty"`
	SectionPath   string   `json:"section_path,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Score         float64  `json:"score"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`
	QualityScore  float64  `json:"quality_score"`
	TokenCount    int      `json:"token_count"`
	ParentSection string   `json:"parent_section,omitempty"`
}

type retrieveResponse struct {
	Results []retrievedChunk `json:"results"`
}

func (s *Server) handleRetrieve(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	filters := domain.RetrievalFilters{
		Exam:            req.Exam,
		Subject:         req.Subject,
		Topic:           req.Topic,
		DocType:         req.DocType,
		Year:            req.Year,
		ExcludeTags:     req.ExcludeTags,
		MinQualityScore: req.MinQualityScore,
	}
	candidates, err := s.retrieve.Retrieve(c.Request.Context(), req.Query, filters, req.TopK, req.TopN)
	if err != nil {
		writeError(c, err)
		return
	}

	results := make([]retrievedChunk, 0, len(candidates))
	for _, cand := range candidates {
		results = append(results, toRetrievedChunk(cand))
	}
	c.JSON(http.StatusOK, retrieveResponse{Results: results})
}

func toRetrievedChunk(cand domain.RetrievalCandidate) retrievedChunk {
	chunk := cand.Chunk
	return retrievedChunk{
		ChunkID:       chunk.ID(),
		DocumentID:    chunk.DocumentID,
		Index:         chunk.Index,
		Content:       chunk.Content,
		SourceTitle:   chunk.SourceTitle,
		Exam:          chunk.Exam,
		Subject:       chunk.Subject,
		Topic:         chunk.Topic,
		DocType:       chunk.DocType,
		Year:          chunk.Year,
		SectionPath:   chunk.SectionPath,
		Tags:          chunk.Tags,
		Score:         cand.Score,
		RerankScore:   cand.RerankScore,
		QualityScore:  chunk.QualityScore,
		TokenCount:    chunk.TokenCount,
		ParentSection: chunk.ParentSection,
	}
}
