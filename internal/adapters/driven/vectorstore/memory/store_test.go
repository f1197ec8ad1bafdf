package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

func chunkAt(docID string, index int, vec []float32) domain.Chunk {
	return domain.Chunk{
		DocumentID:   docID,
		Index:        index,
		Content:      "content",
		Embedding:    vec,
		Exam:         "GATE_DA",
		Subject:      "math",
		QualityScore: 0.8,
	}
}

func TestEnsureSchemaPinsDimension(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	require.NoError(t, store.EnsureSchema(ctx, 3))
	require.NoError(t, store.EnsureSchema(ctx, 3))
	assert.ErrorIs(t, store.EnsureSchema(ctx, 4), domain.ErrDimensionMismatch)
}

func TestReplaceDocumentChunksSwapsSet(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, 2))

	require.NoError(t, store.ReplaceDocumentChunks(ctx, "doc-1", []domain.Chunk{
		chunkAt("doc-1", 0, []float32{1, 0}),
		chunkAt("doc-1", 1, []float32{0, 1}),
	}))
	n, err := store.CountChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Shorter re-ingestion replaces, leaving no stale chunk behind.
	require.NoError(t, store.ReplaceDocumentChunks(ctx, "doc-1", []domain.Chunk{
		chunkAt("doc-1", 0, []float32{1, 1}),
	}))
	n, err = store.CountChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReplaceEmptySetClearsDocument(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, 2))
	require.NoError(t, store.ReplaceDocumentChunks(ctx, "doc-1", []domain.Chunk{chunkAt("doc-1", 0, []float32{1, 0})}))

	require.NoError(t, store.ReplaceDocumentChunks(ctx, "doc-1", nil))
	n, err := store.CountChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplaceRejectsWrongDimension(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, 2))

	err := store.ReplaceDocumentChunks(ctx, "doc-1", []domain.Chunk{chunkAt("doc-1", 0, []float32{1, 0, 0})})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestSearchOrdersByDistance(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, 2))
	require.NoError(t, store.ReplaceDocumentChunks(ctx, "doc-1", []domain.Chunk{
		chunkAt("doc-1", 0, []float32{0, 1}),  // orthogonal
		chunkAt("doc-1", 1, []float32{1, 0}),  // aligned
		chunkAt("doc-1", 2, []float32{1, 1}),  // between
	}))

	hits, err := store.Search(ctx, []float32{1, 0}, domain.RetrievalFilters{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 1, hits[0].Chunk.Index)
	assert.Equal(t, 2, hits[1].Chunk.Index)
	assert.Equal(t, 0, hits[2].Chunk.Index)
	assert.Less(t, hits[0].Distance, hits[1].Distance)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestSearchHonoursTopK(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, 2))
	require.NoError(t, store.ReplaceDocumentChunks(ctx, "doc-1", []domain.Chunk{
		chunkAt("doc-1", 0, []float32{1, 0}),
		chunkAt("doc-1", 1, []float32{0, 1}),
	}))

	hits, err := store.Search(ctx, []float32{1, 0}, domain.RetrievalFilters{}, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSearchAppliesTaxonomyFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, 2))

	physics := chunkAt("doc-1", 0, []float32{1, 0})
	physics.Subject = "physics"
	math := chunkAt("doc-1", 1, []float32{1, 0})
	math.Subject = "math"
	require.NoError(t, store.ReplaceDocumentChunks(ctx, "doc-1", []domain.Chunk{physics, math}))

	hits, err := store.Search(ctx, []float32{1, 0}, domain.RetrievalFilters{Subject: "physics"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "physics", hits[0].Chunk.Subject)
}

func TestSearchExcludesTagsAndLowQuality(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, 2))

	clean := chunkAt("doc-1", 0, []float32{1, 0})
	tagged := chunkAt("doc-1", 1, []float32{1, 0})
	tagged.Tags = []string{"boilerplate"}
	weak := chunkAt("doc-1", 2, []float32{1, 0})
	weak.QualityScore = 0.1
	require.NoError(t, store.ReplaceDocumentChunks(ctx, "doc-1", []domain.Chunk{clean, tagged, weak}))

	hits, err := store.Search(ctx, []float32{1, 0}, domain.RetrievalFilters{
		ExcludeTags:     []string{"boilerplate"},
		MinQualityScore: 0.5,
	}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0, hits[0].Chunk.Index)
}

func TestDeleteDocumentScopesToDocument(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, 2))
	require.NoError(t, store.ReplaceDocumentChunks(ctx, "doc-1", []domain.Chunk{chunkAt("doc-1", 0, []float32{1, 0})}))
	require.NoError(t, store.ReplaceDocumentChunks(ctx, "doc-2", []domain.Chunk{chunkAt("doc-2", 0, []float32{0, 1})}))

	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	n, err := store.CountChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = store.CountChunks(ctx, "doc-2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSearchTieBreaksBeforeTruncation(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureSchema(ctx, 2))

	// Five equidistant chunks across separate documents; only a stable
	// (document, index) order makes the topK cut deterministic.
	for _, docID := range []string{"doc-e", "doc-c", "doc-a", "doc-d", "doc-b"} {
		require.NoError(t, store.ReplaceDocumentChunks(ctx, docID, []domain.Chunk{
			chunkAt(docID, 0, []float32{1, 0}),
		}))
	}

	for i := 0; i < 10; i++ {
		results, err := store.Search(ctx, []float32{1, 0}, domain.RetrievalFilters{Exam: "GATE_DA"}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "doc-a", results[0].Chunk.DocumentID)
		assert.Equal(t, "doc-b", results[1].Chunk.DocumentID)
	}
}
