package services

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
	"github.com/veda-labs/examtutor/internal/logger"
)

// DefaultEmbedBatchSize bounds how many chunks go to the embedding
// provider in one call.
const DefaultEmbedBatchSize = 32

// Indexer embeds filtered chunk drafts and writes the document's chunk
// set to the vector store. Chunk IDs derive from (document id, index),
// so re-ingestion overwrites rather than duplicates.
type Indexer struct {
	embedder  driven.EmbeddingService
	vectors   driven.VectorStore
	limiter   *rate.Limiter
	batchSize int
}

// NewIndexer creates an indexer. limiter may be nil to disable
// provider rate limiting.
func NewIndexer(embedder driven.EmbeddingService, vectors driven.VectorStore, limiter *rate.Limiter, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	return &Indexer{
		embedder:  embedder,
		vectors:   vectors,
		limiter:   limiter,
		batchSize: batchSize,
	}
}

// Index embeds the drafts in batches and atomically replaces the
// document's chunk set. The old set stays queryable until the new one
// is written.
func (ix *Indexer) Index(ctx context.Context, doc *domain.Document, drafts []domain.ChunkDraft) ([]domain.Chunk, error) {
	// 1. Verify the store schema before any write.
	if err := ix.vectors.EnsureSchema(ctx, ix.embedder.Dimensions()); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if len(drafts) == 0 {
		// Nothing survived filtering; drop any chunks from a previous run.
		if err := ix.vectors.ReplaceDocumentChunks(ctx, doc.ID, nil); err != nil {
			return nil, fmt.Errorf("replace chunks: %w", err)
		}
		return nil, nil
	}

	// 2. Embed in bounded batches, rate limited per provider call.
	chunks := make([]domain.Chunk, 0, len(drafts))
	for start := 0; start < len(drafts); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(drafts) {
			end = len(drafts)
		}
		batch := drafts[start:end]

		if ix.limiter != nil {
			if err := ix.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", domain.ErrEmbedding, len(vectors), len(batch))
		}

		for i, d := range batch {
			chunks = append(chunks, buildChunk(doc, d, vectors[i]))
		}
	}

	// 3. Replace the document's chunk set in one pass.
	if err := ix.vectors.ReplaceDocumentChunks(ctx, doc.ID, chunks); err != nil {
		return nil, fmt.Errorf("replace chunks: %w", err)
	}

	logger.Debug("Indexed %d chunks for document %s (%s)", len(chunks), doc.ID, ix.embedder.ModelName())
	return chunks, nil
}

// buildChunk denormalises the document taxonomy onto a draft.
func buildChunk(doc *domain.Document, d domain.ChunkDraft, embedding []float32) domain.Chunk {
	return domain.Chunk{
		DocumentID:    doc.ID,
		Index:         d.Index,
		Content:       d.Content,
		TokenCount:    d.TokenCount,
		Embedding:     embedding,
		Exam:          doc.Exam,
		Subject:       doc.Subject,
		Topic:         doc.Topic,
		DocType:       doc.DocType,
		Year:          doc.Year,
		SourceTitle:   doc.Title,
		Tags:          d.Tags,
		QualityScore:  d.QualityScore,
		ContentHash:   d.ContentHash(),
		SectionPath:   d.SectionPath,
		ParentSection: d.ParentSection,
	}
}
