package driven

import (
	"context"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

// ChatOptions configures chat completion behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}

// LLMService is the chat-completion provider used to ground answers.
// Failures wrap domain.ErrInference.
type LLMService interface {
	// Chat returns a single completion for the message sequence.
	Chat(ctx context.Context, messages []domain.ChatMessage, opts ChatOptions) (string, error)

	// StreamChat streams a completion token by token, invoking onDelta
	// for each content fragment in order. A non-nil error from onDelta
	// cancels the stream and is returned unchanged; this is how callers
	// propagate client disconnects.
	StreamChat(ctx context.Context, messages []domain.ChatMessage, opts ChatOptions, onDelta func(delta string) error) error

	// ModelName returns the name of the model being used.
	ModelName() string
}
