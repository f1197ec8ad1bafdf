package driven

import (
	"context"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

// DocumentStore persists document records. Chunks are not stored here;
// the vector store owns them.
type DocumentStore interface {
	// SaveDocument stores or updates a document.
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// DeleteDocument removes a document. The job row cascades with it;
	// callers are responsible for the vector-store cascade.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all registered documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}

// JobStore persists ingestion job state. Transitions are conditional
// updates so that concurrent workers respect the state machine.
type JobStore interface {
	// ResetQueued creates the job row or resets a terminal job back to
	// queued, clearing error and timestamps. Returns domain.ErrJobConflict
	// if the job exists and is queued or running.
	ResetQueued(ctx context.Context, documentID string) error

	// Claim atomically moves queued → running and sets started_at.
	// Returns domain.ErrJobNotClaimable when the job is not queued, so
	// at-least-once re-deliveries are safe to drop.
	Claim(ctx context.Context, documentID string) error

	// MarkDone moves running → done and sets finished_at.
	MarkDone(ctx context.Context, documentID string) error

	// MarkFailed moves running → failed with error detail.
	MarkFailed(ctx context.Context, documentID string, errMsg string) error

	// Get retrieves the job for a document.
	Get(ctx context.Context, documentID string) (*domain.IngestionJob, error)
}

// MemoryStore persists conversations and their messages for chat memory.
type MemoryStore interface {
	// EnsureConversation returns the conversation ID, creating the
	// conversation when id is empty or unknown.
	EnsureConversation(ctx context.Context, id string) (string, error)

	// AddMessage appends a message to a conversation.
	AddMessage(ctx context.Context, conversationID, role, content string) error

	// RecentMessages returns up to limit most recent messages in
	// chronological order.
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.ChatMessage, error)
}

// FeedbackStore persists user feedback on chat exchanges.
type FeedbackStore interface {
	// SaveFeedback stores one feedback record.
	SaveFeedback(ctx context.Context, fb *domain.Feedback) error
}
