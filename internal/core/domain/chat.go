package domain

import (
	"fmt"
	"strings"
	"time"
)

// TutorMode selects the tutoring style. Modes alter prompt construction
// only, never retrieval mechanics.
type TutorMode string

// Supported tutor modes.
const (
	ModeDoubt    TutorMode = "doubt"
	ModePractice TutorMode = "practice"
	ModePYQ      TutorMode = "pyq"
)

// ParseTutorMode validates a mode string; empty defaults to doubt.
func ParseTutorMode(s string) (TutorMode, error) {
	switch TutorMode(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return ModeDoubt, nil
	case ModeDoubt:
		return ModeDoubt, nil
	case ModePractice:
		return ModePractice, nil
	case ModePYQ:
		return ModePYQ, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, s)
}

// ChatMessage is a single turn in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatRequest is the payload accepted by the chat surface.
type ChatRequest struct {
	Message        string
	ConversationID string
	Exam           string
	Mode           TutorMode
	Language       string

	// Optional retrieval filters.
	Subject string
	Topic   string
	DocType string
	Year    int
}

// Citation points at a chunk the answer relied on.
type Citation struct {
	ChunkID     string `json:"chunk_id"`
	SourceTitle string `json:"source_title"`
}

// ChatAnswer is the terminal payload of a chat exchange: the answer,
// its citations, and the chunks actually placed in the prompt.
type ChatAnswer struct {
	ConversationID string               `json:"conversation_id"`
	Answer         string               `json:"answer"`
	Citations      []Citation           `json:"citations"`
	UsedChunks     []RetrievalCandidate `json:"used_chunks"`
}

// Stream event types. A stream is zero or more token events followed by
// exactly one terminal event (final or error); nothing follows a
// terminal event.
const (
	EventToken = "token"
	EventFinal = "final"
	EventError = "error"
)

// StreamEvent is one element of a chat token stream.
type StreamEvent struct {
	// Type is token, final or error.
	Type string

	// Delta is the token text (Type == token).
	Delta string

	// Final is the terminal payload (Type == final).
	Final *ChatAnswer

	// Err is the failure detail (Type == error).
	Err string
}

// Feedback is a user rating of a chat exchange.
type Feedback struct {
	ID             string
	ConversationID string
	Rating         int // 0 = bad, 1 = good
	Notes          string
	Payload        map[string]any
	CreatedAt      time.Time
}

// Validate checks feedback bounds.
func (f *Feedback) Validate() error {
	if f.Rating != 0 && f.Rating != 1 {
		return fmt.Errorf("%w: rating must be 0 or 1", ErrInvalidInput)
	}
	return nil
}
