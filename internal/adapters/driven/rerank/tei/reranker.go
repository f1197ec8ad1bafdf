// Package tei provides a rerank adapter for Text Embeddings Inference
// style cross-encoder servers exposing a /rerank endpoint.
package tei

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.RerankScorer = (*Reranker)(nil)

// DefaultTimeout bounds one scoring request.
const DefaultTimeout = 30 * time.Second

// Config holds configuration for the reranker.
type Config struct {
	// BaseURL is the server address (required), e.g. http://tei:8080.
	BaseURL string

	// APIKey authorises requests. Optional for keyless local servers.
	APIKey string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// Reranker scores query/passage pairs against a TEI /rerank endpoint.
type Reranker struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// rerankRequest is the TEI request format.
type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

// rerankResult is one scored passage; results come back sorted by
// score, so Index maps each back to its input position.
type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// NewReranker creates a reranker client.
func NewReranker(cfg Config) (*Reranker, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("rerank: base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Reranker{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}, nil
}

// Score returns one relevance score per passage, in input order.
// Connection failures wrap domain.ErrRerankUnavailable so retrieval can
// degrade to first-stage order.
func (r *Reranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	jsonBody, err := json.Marshal(rerankRequest{Query: query, Texts: passages})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRerankUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrRerankUnavailable, resp.StatusCode, string(body))
	}

	var results []rerankResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrRerankUnavailable, err)
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(passages) {
			return nil, fmt.Errorf("%w: result index %d out of range", domain.ErrRerankUnavailable, res.Index)
		}
		scores[res.Index] = res.Score
		seen[res.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: missing score for passage %d", domain.ErrRerankUnavailable, i)
		}
	}
	return scores, nil
}
