package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
	"github.com/veda-labs/examtutor/internal/core/ports/driving"
	"github.com/veda-labs/examtutor/internal/logger"
)

// Retrieval defaults.
const (
	DefaultTopK  = 20
	DefaultTopN  = 6
	DefaultTopM  = 10
	MaxTopK      = 100
	MaxQueryRune = 2000
)

// Ensure Retriever implements the interface.
var _ driving.RetrieveService = (*Retriever)(nil)

// Retriever embeds the query, runs a filtered vector search and
// optionally reranks the head of the result list. It holds no state
// and is safe for concurrent use.
type Retriever struct {
	embedder driven.EmbeddingService
	vectors  driven.VectorStore
	reranker driven.RerankScorer // nil disables the rerank stage
	topM     int
}

// NewRetriever creates a retriever. reranker may be nil, in which case
// first-stage order passes through unchanged.
func NewRetriever(embedder driven.EmbeddingService, vectors driven.VectorStore, reranker driven.RerankScorer, topM int) *Retriever {
	if topM <= 0 {
		topM = DefaultTopM
	}
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		reranker: reranker,
		topM:     topM,
	}
}

// Retrieve runs the two-stage retrieval pipeline and returns at most
// topN candidates. An empty corpus or over-restrictive filters yield an
// empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, filters domain.RetrievalFilters, topK, topN int) ([]domain.RetrievalCandidate, error) {
	// 1. Validate inputs.
	if len([]rune(query)) == 0 {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if len([]rune(query)) > MaxQueryRune {
		return nil, fmt.Errorf("%w: query exceeds %d characters", domain.ErrInvalidInput, MaxQueryRune)
	}
	if err := filters.Validate(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if topN <= 0 {
		topN = DefaultTopN
	}

	// 2. Embed the query with the same model used at ingestion.
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// 3. First stage: filtered nearest-neighbour search.
	candidates, err := r.vectors.Search(ctx, queryVec, filters, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(candidates) == 0 {
		return []domain.RetrievalCandidate{}, nil
	}

	// Deterministic order: ascending distance, ties by document then
	// chunk index.
	sortByDistance(candidates)

	// 4. Second stage: rerank the head when a scorer is configured.
	candidates = r.rerank(ctx, query, candidates)

	if len(candidates) > topN {
		candidates = candidates[:topN]
	}
	return candidates, nil
}

// rerank rescoring covers the first topM candidates; the tail keeps its
// first-stage order. An unreachable reranker degrades to pass-through.
func (r *Retriever) rerank(ctx context.Context, query string, candidates []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	if r.reranker == nil {
		return candidates
	}

	m := r.topM
	if m > len(candidates) {
		m = len(candidates)
	}
	head := candidates[:m]

	passages := make([]string, m)
	for i, c := range head {
		passages[i] = c.Chunk.Content
	}

	scores, err := r.reranker.Score(ctx, query, passages)
	if err != nil {
		if errors.Is(err, domain.ErrRerankUnavailable) {
			logger.Warn("Reranker unavailable, keeping first-stage order: %v", err)
			return candidates
		}
		logger.Warn("Rerank failed, keeping first-stage order: %v", err)
		return candidates
	}
	if len(scores) != m {
		logger.Warn("Reranker returned %d scores for %d passages, keeping first-stage order", len(scores), m)
		return candidates
	}

	for i := range head {
		s := scores[i]
		head[i].RerankScore = &s
	}
	// Stable sort keeps first-stage order between equal rerank scores.
	sort.SliceStable(head, func(a, b int) bool {
		return *head[a].RerankScore > *head[b].RerankScore
	})
	return candidates
}

// sortByDistance orders candidates ascending by distance with a stable
// tie-break so equal distances reproduce across runs.
func sortByDistance(candidates []domain.RetrievalCandidate) {
	sort.SliceStable(candidates, func(a, b int) bool {
		ca, cb := candidates[a], candidates[b]
		if ca.Distance != cb.Distance {
			return ca.Distance < cb.Distance
		}
		if ca.Chunk.DocumentID != cb.Chunk.DocumentID {
			return ca.Chunk.DocumentID < cb.Chunk.DocumentID
		}
		return ca.Chunk.Index < cb.Chunk.Index
	})
}
