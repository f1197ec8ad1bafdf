package driven

import (
	"context"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

// VectorStore is the sole authority for chunk persistence. It supports
// upsert-by-key, delete-by-document and filtered nearest-neighbour
// search over chunk metadata.
type VectorStore interface {
	// EnsureSchema prepares the store for vectors of the given
	// dimension. If the store already holds a different dimension it
	// returns domain.ErrDimensionMismatch; this runs before any write.
	EnsureSchema(ctx context.Context, dimensions int) error

	// ReplaceDocumentChunks swaps a document's chunk set for the given
	// one. Chunks are keyed by (document id, chunk index); stale keys
	// from a previous ingestion are pruned. The old set stays queryable
	// until the new set is written; on error the old set is untouched.
	ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.Chunk) error

	// DeleteDocument removes every chunk belonging to the document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Search returns up to topK candidates nearest to the query vector,
	// restricted by the filters (exact-match taxonomy fields, tag
	// exclusion, quality floor), ordered by ascending cosine distance.
	Search(ctx context.Context, query []float32, filters domain.RetrievalFilters, topK int) ([]domain.RetrievalCandidate, error)

	// CountChunks returns the number of persisted chunks for a document.
	CountChunks(ctx context.Context, documentID string) (int, error)
}
