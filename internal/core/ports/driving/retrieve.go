package driving

import (
	"context"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

// RetrieveService answers similarity queries over the indexed corpus.
// It is a pure read: no side effects, safe to cancel at any point.
type RetrieveService interface {
	// Retrieve embeds the query, searches the vector store under the
	// filters, optionally reranks the top-M candidates, and returns at
	// most topN results. An empty result is not an error.
	Retrieve(ctx context.Context, query string, filters domain.RetrievalFilters, topK, topN int) ([]domain.RetrievalCandidate, error)
}

// ChatService answers tutoring questions grounded in retrieved chunks.
type ChatService interface {
	// Chat runs retrieval, prompts the LLM once and returns the final
	// payload.
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error)

	// StreamChat emits ordered token events followed by exactly one
	// terminal event (final or error). A non-nil error from emit
	// cancels the stream; persisted conversation state is unaffected
	// by consumer cancellation.
	StreamChat(ctx context.Context, req domain.ChatRequest, emit func(domain.StreamEvent) error) error
}
