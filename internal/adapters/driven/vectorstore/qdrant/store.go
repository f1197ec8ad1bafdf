// Package qdrant implements the vector store port against Qdrant's
// REST API. Chunks are points keyed by the deterministic chunk ID, so
// re-ingesting a document upserts in place; stale points from a shorter
// earlier chunk set are pruned by a has_id exclusion filter.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
)

const defaultTimeout = 30 * time.Second

// Config holds Qdrant connection settings.
type Config struct {
	// BaseURL is the Qdrant REST endpoint, e.g. http://localhost:6333.
	BaseURL string

	// APIKey is optional; sent as the api-key header when set.
	APIKey string

	// Collection is the collection name holding chunk points.
	Collection string

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// Store is a REST client to a Qdrant collection using cosine distance.
type Store struct {
	config Config
	client *http.Client
}

// Interface guard
var _ driven.VectorStore = (*Store)(nil)

// NewStore creates a Qdrant-backed vector store.
func NewStore(config Config) *Store {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &Store{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// EnsureSchema creates the collection if missing and verifies the
// vector dimension when it already exists.
func (s *Store) EnsureSchema(ctx context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}

	// 1. Probe the existing collection
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &info)
	if err != nil {
		return fmt.Errorf("probe collection: %w", err)
	}
	if status == http.StatusOK {
		if got := info.Result.Config.Params.Vectors.Size; got != dimensions {
			return fmt.Errorf("%w: collection %q holds %d-dimensional vectors, embedder produces %d",
				domain.ErrDimensionMismatch, s.config.Collection, got, dimensions)
		}
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("probe collection: unexpected status %d", status)
	}

	// 2. Create it
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimensions,
			"distance": "Cosine",
		},
	}
	status, err = s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("create collection: unexpected status %d", status)
	}
	return nil
}

// ReplaceDocumentChunks upserts the new chunk set, then prunes points
// of the document that are not part of it. Upsert-before-prune keeps
// the old set intact when the write fails.
func (s *Store) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return s.DeleteDocument(ctx, documentID)
	}

	// 1. Upsert the new points under their deterministic IDs
	ids := make([]string, len(chunks))
	points := make([]map[string]any, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID()
		points[i] = map[string]any{
			"id":      ids[i],
			"vector":  chunk.Embedding,
			"payload": chunkPayload(chunk),
		}
	}
	status, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil)
	if err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("upsert chunks: unexpected status %d", status)
	}

	// 2. Prune stale points left over from a longer previous chunk set
	prune := map[string]any{
		"filter": map[string]any{
			"must":     []map[string]any{matchCondition("document_id", documentID)},
			"must_not": []map[string]any{{"has_id": ids}},
		},
	}
	status, err = s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), prune, nil)
	if err != nil {
		return fmt.Errorf("prune stale chunks: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("prune stale chunks: unexpected status %d", status)
	}
	return nil
}

// DeleteDocument removes every point belonging to the document.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{matchCondition("document_id", documentID)},
		},
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/delete?wait=true"), body, nil)
	if err != nil {
		return fmt.Errorf("delete document chunks: %w", err)
	}
	if status >= 300 {
		return fmt.Errorf("delete document chunks: unexpected status %d", status)
	}
	return nil
}

// Search runs a filtered nearest-neighbour query and maps Qdrant's
// cosine similarity back to the distance-ordered candidate form.
func (s *Store) Search(ctx context.Context, query []float32, filters domain.RetrievalFilters, topK int) ([]domain.RetrievalCandidate, error) {
	body := map[string]any{
		"vector":       query,
		"limit":        topK,
		"with_payload": true,
	}
	if filter := buildFilter(filters); filter != nil {
		body["filter"] = filter
	}

	var resp struct {
		Result []struct {
			Score   float64         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), body, &resp)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if status >= 300 {
		return nil, fmt.Errorf("search: unexpected status %d", status)
	}

	candidates := make([]domain.RetrievalCandidate, 0, len(resp.Result))
	for _, hit := range resp.Result {
		chunk, err := chunkFromPayload(hit.Payload)
		if err != nil {
			return nil, fmt.Errorf("decode search hit: %w", err)
		}
		// Qdrant reports cosine similarity; candidates carry distance.
		distance := 1.0 - hit.Score
		if distance < 0 {
			distance = 0
		}
		candidates = append(candidates, domain.RetrievalCandidate{
			Chunk:    chunk,
			Distance: distance,
			Score:    domain.SimilarityFromDistance(distance),
		})
	}
	return candidates, nil
}

// CountChunks returns the number of points stored for the document.
func (s *Store) CountChunks(ctx context.Context, documentID string) (int, error) {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{matchCondition("document_id", documentID)},
		},
		"exact": true,
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	status, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), body, &resp)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	if status >= 300 {
		return 0, fmt.Errorf("count chunks: unexpected status %d", status)
	}
	return resp.Result.Count, nil
}

// buildFilter translates retrieval filters into a Qdrant filter
// clause. Returns nil when no condition applies.
func buildFilter(filters domain.RetrievalFilters) map[string]any {
	var must, mustNot []map[string]any

	if filters.Exam != "" {
		must = append(must, matchCondition("exam", filters.Exam))
	}
	if filters.Subject != "" {
		must = append(must, matchCondition("subject", filters.Subject))
	}
	if filters.Topic != "" {
		must = append(must, matchCondition("topic", filters.Topic))
	}
	if filters.DocType != "" {
		must = append(must, matchCondition("doc_type", filters.DocType))
	}
	if filters.Year != 0 {
		must = append(must, matchCondition("year", filters.Year))
	}
	if filters.MinQualityScore > 0 {
		must = append(must, map[string]any{
			"key":   "quality_score",
			"range": map[string]any{"gte": filters.MinQualityScore},
		})
	}
	for _, tag := range filters.ExcludeTags {
		mustNot = append(mustNot, matchCondition("tags", tag))
	}

	if len(must) == 0 && len(mustNot) == 0 {
		return nil
	}
	filter := map[string]any{}
	if len(must) > 0 {
		filter["must"] = must
	}
	if len(mustNot) > 0 {
		filter["must_not"] = mustNot
	}
	return filter
}

func matchCondition(key string, value any) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

// chunkPayload mirrors chunkFromPayload; the embedding itself lives in
// the point vector, not the payload.
func chunkPayload(chunk domain.Chunk) map[string]any {
	return map[string]any{
		"document_id":    chunk.DocumentID,
		"chunk_index":    chunk.Index,
		"content":        chunk.Content,
		"token_count":    chunk.TokenCount,
		"exam":           chunk.Exam,
		"subject":        chunk.Subject,
		"topic":          chunk.Topic,
		"doc_type":       chunk.DocType,
		"year":           chunk.Year,
		"source_title":   chunk.SourceTitle,
		"tags":           chunk.Tags,
		"quality_score":  chunk.QualityScore,
		"content_hash":   chunk.ContentHash,
		"section_path":   chunk.SectionPath,
		"parent_section": chunk.ParentSection,
	}
}

func chunkFromPayload(raw json.RawMessage) (domain.Chunk, error) {
	var payload struct {
		DocumentID    string   `json:"document_id"`
		ChunkIndex    int      `json:"chunk_index"`
		Content       string   `json:"content"`
		TokenCount    int      `json:"token_count"`
		Exam          string   `json:"exam"`
		Subject       string   `json:"subject"`
		Topic         string   `json:"topic"`
		DocType       string   `json:"doc_type"`
		Year          int      `json:"year"`
		SourceTitle   string   `json:"source_title"`
		Tags          []string `json:"tags"`
		QualityScore  float64  `json:"quality_score"`
		ContentHash   string   `json:"content_hash"`
		SectionPath   string   `json:"section_path"`
		ParentSection string   `json:"parent_section"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.Chunk{}, err
	}
	return domain.Chunk{
		DocumentID:    payload.DocumentID,
		Index:         payload.ChunkIndex,
		Content:       payload.Content,
		TokenCount:    payload.TokenCount,
		Exam:          payload.Exam,
		Subject:       payload.Subject,
		Topic:         payload.Topic,
		DocType:       payload.DocType,
		Year:          payload.Year,
		SourceTitle:   payload.SourceTitle,
		Tags:          payload.Tags,
		QualityScore:  payload.QualityScore,
		ContentHash:   payload.ContentHash,
		SectionPath:   payload.SectionPath,
		ParentSection: payload.ParentSection,
	}, nil
}

func (s *Store) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.config.BaseURL, s.config.Collection, suffix)
}

// do issues one JSON request. Non-2xx statuses are returned to the
// caller rather than treated as transport errors so EnsureSchema can
// distinguish a missing collection from a broken connection.
func (s *Store) do(ctx context.Context, method, url string, body any, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("api-key", s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
