// Package memory implements the vector store port with an in-process
// map and exact cosine scan. It backs tests and small single-node
// deployments where running Qdrant is not worth it.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
)

// Store keeps chunks in memory keyed by (document id, chunk index).
type Store struct {
	mu         sync.RWMutex
	dimensions int
	chunks     map[string][]domain.Chunk // document id -> chunk set
}

// Interface guard
var _ driven.VectorStore = (*Store)(nil)

// NewStore creates an empty in-memory vector store.
func NewStore() *Store {
	return &Store{chunks: make(map[string][]domain.Chunk)}
}

// EnsureSchema pins the vector dimension on first call and rejects a
// different dimension afterwards.
func (s *Store) EnsureSchema(_ context.Context, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimensions == 0 {
		s.dimensions = dimensions
		return nil
	}
	if s.dimensions != dimensions {
		return fmt.Errorf("%w: store holds %d-dimensional vectors, embedder produces %d",
			domain.ErrDimensionMismatch, s.dimensions, dimensions)
	}
	return nil
}

// ReplaceDocumentChunks swaps the document's chunk set atomically.
func (s *Store) ReplaceDocumentChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(chunks) == 0 {
		delete(s.chunks, documentID)
		return nil
	}
	for _, chunk := range chunks {
		if s.dimensions != 0 && len(chunk.Embedding) != s.dimensions {
			return fmt.Errorf("%w: chunk %d carries a %d-dimensional vector, store holds %d",
				domain.ErrDimensionMismatch, chunk.Index, len(chunk.Embedding), s.dimensions)
		}
	}

	copied := make([]domain.Chunk, len(chunks))
	copy(copied, chunks)
	s.chunks[documentID] = copied
	return nil
}

// DeleteDocument removes every chunk belonging to the document.
func (s *Store) DeleteDocument(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.chunks, documentID)
	return nil
}

// Search scans every stored chunk, applies the filters and returns the
// topK nearest by cosine distance.
func (s *Store) Search(_ context.Context, query []float32, filters domain.RetrievalFilters, topK int) ([]domain.RetrievalCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []domain.RetrievalCandidate
	for _, set := range s.chunks {
		for _, chunk := range set {
			if !matchesFilters(chunk, filters) {
				continue
			}
			distance := cosineDistance(query, chunk.Embedding)
			candidates = append(candidates, domain.RetrievalCandidate{
				Chunk:    chunk,
				Distance: distance,
				Score:    domain.SimilarityFromDistance(distance),
			})
		}
	}

	// Equal distances tie-break on (document, index) so results do not
	// depend on map iteration order.
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
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// CountChunks returns the number of stored chunks for the document.
func (s *Store) CountChunks(_ context.Context, documentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[documentID]), nil
}

func matchesFilters(chunk domain.Chunk, filters domain.RetrievalFilters) bool {
	if filters.Exam != "" && chunk.Exam != filters.Exam {
		return false
	}
	if filters.Subject != "" && chunk.Subject != filters.Subject {
		return false
	}
	if filters.Topic != "" && chunk.Topic != filters.Topic {
		return false
	}
	if filters.DocType != "" && chunk.DocType != filters.DocType {
		return false
	}
	if filters.Year != 0 && chunk.Year != filters.Year {
		return false
	}
	if filters.MinQualityScore > 0 && chunk.QualityScore < filters.MinQualityScore {
		return false
	}
	if filters.Excludes(chunk.Tags) {
		return false
	}
	return true
}

// cosineDistance is 1 minus the cosine similarity. Zero-norm vectors
// are treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
