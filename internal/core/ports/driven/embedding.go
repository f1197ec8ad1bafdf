package driven

import "context"

// EmbeddingService generates vector embeddings from text. The same
// model (and therefore dimension) must serve both ingestion and query
// embedding within a deployment; changing models requires full
// re-ingestion.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one
	// provider call. Callers bound the batch size.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size. It must match the
	// vector store schema; a mismatch is a fatal configuration error.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string
}
