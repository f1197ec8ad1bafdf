package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
	"github.com/veda-labs/examtutor/internal/core/ports/driving"
	"github.com/veda-labs/examtutor/internal/logger"
)

// Tutoring defaults.
const (
	DefaultPromptMaxChunks = 4
	DefaultPromptMaxTokens = 1200
	DefaultMemoryMessages  = 12
	DefaultMinSourceScore  = 0.15
	maxCitations           = 5
)

// DefaultExcludeTags keeps filter-tagged noise out of tutoring
// grounding. The chunks stay indexed; this is query-time policy only.
func DefaultExcludeTags() []string {
	return []string{
		domain.TagFrontMatter,
		domain.TagBoilerplate,
		domain.TagImageOnly,
		domain.TagDuplicate,
	}
}

// TutorSettings configures the chat pipeline.
type TutorSettings struct {
	DefaultExam     string
	DefaultLanguage string
	TopK            int
	TopN            int
	// MinSourceScore drops weak retrieval before prompting.
	MinSourceScore float64
	// ExcludeTags disqualifies tagged chunks from grounding. Nil takes
	// DefaultExcludeTags; an explicit empty slice disables exclusion.
	ExcludeTags []string
	// MinQualityScore is the quality floor applied at retrieval time.
	MinQualityScore float64
	// PromptMaxChunks and PromptMaxTokens bound the SOURCES block.
	PromptMaxChunks int
	PromptMaxTokens int
	// MemoryMessages is how many recent turns enter the prompt.
	MemoryMessages int
	// LLM generation options.
	MaxTokens   int
	Temperature float64
}

func (s *TutorSettings) applyDefaults() {
	if s.DefaultLanguage == "" {
		s.DefaultLanguage = "en"
	}
	if s.TopK <= 0 {
		s.TopK = DefaultTopK
	}
	if s.TopN <= 0 {
		s.TopN = DefaultTopN
	}
	if s.MinSourceScore <= 0 {
		s.MinSourceScore = DefaultMinSourceScore
	}
	if s.ExcludeTags == nil {
		s.ExcludeTags = DefaultExcludeTags()
	}
	if s.PromptMaxChunks <= 0 {
		s.PromptMaxChunks = DefaultPromptMaxChunks
	}
	if s.PromptMaxTokens <= 0 {
		s.PromptMaxTokens = DefaultPromptMaxTokens
	}
	if s.MemoryMessages <= 0 {
		s.MemoryMessages = DefaultMemoryMessages
	}
}

// Ensure Tutor implements the interface.
var _ driving.ChatService = (*Tutor)(nil)

// Tutor answers questions grounded in retrieved chunks, with
// conversation memory and per-mode prompting.
type Tutor struct {
	retriever driving.RetrieveService
	llm       driven.LLMService
	memory    driven.MemoryStore
	settings  TutorSettings
}

// NewTutor creates the chat service.
func NewTutor(retriever driving.RetrieveService, llm driven.LLMService, memory driven.MemoryStore, settings TutorSettings) *Tutor {
	settings.applyDefaults()
	return &Tutor{
		retriever: retriever,
		llm:       llm,
		memory:    memory,
		settings:  settings,
	}
}

// built is the assembled state of one exchange before the LLM call.
type built struct {
	conversationID string
	messages       []domain.ChatMessage
	usedChunks     []domain.RetrievalCandidate
}

// Chat runs retrieval, prompts the LLM once and returns the final
// payload.
func (t *Tutor) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error) {
	b, err := t.build(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, err := t.llm.Chat(ctx, b.messages, t.llmOptions())
	if err != nil {
		return nil, fmt.Errorf("llm chat: %w", err)
	}
	answer = strings.TrimSpace(answer)

	t.persistAssistant(ctx, b.conversationID, answer)
	return t.finalAnswer(b, answer), nil
}

// StreamChat emits ordered token events followed by exactly one
// terminal event. A generation failure becomes an error event, not a
// returned error; only emit failures (consumer gone) propagate.
func (t *Tutor) StreamChat(ctx context.Context, req domain.ChatRequest, emit func(domain.StreamEvent) error) error {
	b, err := t.build(ctx, req)
	if err != nil {
		return err
	}

	var sb strings.Builder
	streamErr := t.llm.StreamChat(ctx, b.messages, t.llmOptions(), func(delta string) error {
		sb.WriteString(delta)
		return emit(domain.StreamEvent{Type: domain.EventToken, Delta: delta})
	})
	if streamErr != nil {
		// The user turn is already persisted; only the assistant reply is
		// lost on failure.
		if emitErr := emit(domain.StreamEvent{Type: domain.EventError, Err: fmt.Sprintf("llm request failed: %v", streamErr)}); emitErr != nil {
			return emitErr
		}
		return nil
	}

	answer := strings.TrimSpace(sb.String())
	t.persistAssistant(ctx, b.conversationID, answer)
	return emit(domain.StreamEvent{Type: domain.EventFinal, Final: t.finalAnswer(b, answer)})
}

// build validates the request, assembles memory and retrieval into the
// prompt, and persists the user turn. Memory is read before the user
// message is stored so the prompt does not duplicate the question.
func (t *Tutor) build(ctx context.Context, req domain.ChatRequest) (*built, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, fmt.Errorf("%w: empty message", domain.ErrInvalidInput)
	}
	mode, err := domain.ParseTutorMode(string(req.Mode))
	if err != nil {
		return nil, err
	}
	exam := req.Exam
	if exam == "" {
		exam = t.settings.DefaultExam
	}
	language := req.Language
	if language == "" {
		language = t.settings.DefaultLanguage
	}

	// 1. Ensure the conversation exists.
	conversationID, err := t.memory.EnsureConversation(ctx, req.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("ensure conversation: %w", err)
	}

	// 2. Read memory before adding the current turn.
	recent, err := t.memory.RecentMessages(ctx, conversationID, t.settings.MemoryMessages)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}

	// 3. Retrieve grounding chunks.
	filters := domain.RetrievalFilters{
		Exam:            exam,
		Subject:         req.Subject,
		Topic:           req.Topic,
		DocType:         req.DocType,
		Year:            req.Year,
		ExcludeTags:     t.settings.ExcludeTags,
		MinQualityScore: t.settings.MinQualityScore,
	}
	retrieved, err := t.retriever.Retrieve(ctx, req.Message, filters, t.settings.TopK, t.settings.TopN)
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}

	// 4. Drop weak matches and fit the rest into the prompt budget.
	used := t.capSources(strongOnly(retrieved, t.settings.MinSourceScore))

	parts := buildPrompt(mode, exam, language, req.Message, used, memoryBlock(recent))

	// 5. Persist the user turn after prompt assembly.
	if err := t.memory.AddMessage(ctx, conversationID, "user", req.Message); err != nil {
		return nil, fmt.Errorf("add user message: %w", err)
	}

	return &built{
		conversationID: conversationID,
		messages:       parts.toMessages(),
		usedChunks:     used,
	}, nil
}

func (t *Tutor) llmOptions() driven.ChatOptions {
	return driven.ChatOptions{
		MaxTokens:   t.settings.MaxTokens,
		Temperature: t.settings.Temperature,
	}
}

// persistAssistant stores the assistant reply. Memory failures degrade
// the next turn's context but never fail a delivered answer.
func (t *Tutor) persistAssistant(ctx context.Context, conversationID, answer string) {
	if answer == "" {
		return
	}
	if err := t.memory.AddMessage(ctx, conversationID, "assistant", answer); err != nil {
		logger.Warn("Failed to persist assistant message for conversation %s: %v", conversationID, err)
	}
}

// finalAnswer builds the terminal payload with citations from the
// highest-ranked used chunks.
func (t *Tutor) finalAnswer(b *built, answer string) *domain.ChatAnswer {
	n := len(b.usedChunks)
	if n > maxCitations {
		n = maxCitations
	}
	citations := make([]domain.Citation, 0, n)
	for _, c := range b.usedChunks[:n] {
		citations = append(citations, domain.Citation{
			ChunkID:     c.Chunk.ID(),
			SourceTitle: c.Chunk.SourceTitle,
		})
	}
	return &domain.ChatAnswer{
		ConversationID: b.conversationID,
		Answer:         answer,
		Citations:      citations,
		UsedChunks:     b.usedChunks,
	}
}

// strongOnly keeps candidates at or above the score floor. Reranked
// candidates keep their first-stage score for this check.
func strongOnly(candidates []domain.RetrievalCandidate, minScore float64) []domain.RetrievalCandidate {
	out := make([]domain.RetrievalCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= minScore {
			out = append(out, c)
		}
	}
	return out
}

// capSources bounds the SOURCES block by chunk count and token budget.
// An oversized top chunk is truncated to fit rather than dropped, which
// keeps OCR-heavy PDFs usable.
func (t *Tutor) capSources(candidates []domain.RetrievalCandidate) []domain.RetrievalCandidate {
	if len(candidates) == 0 {
		return candidates
	}

	capped := make([]domain.RetrievalCandidate, 0, len(candidates))
	total := 0
	for _, c := range candidates {
		if len(capped) >= t.settings.PromptMaxChunks {
			break
		}
		remaining := t.settings.PromptMaxTokens - total
		if remaining <= 0 {
			break
		}

		estimate := c.Chunk.TokenCount
		if estimate <= 0 {
			estimate = len(c.Chunk.Content) / 4
			if estimate < 1 {
				estimate = 1
			}
		}
		if estimate <= remaining {
			capped = append(capped, c)
			total += estimate
			continue
		}

		if len(capped) == 0 {
			const suffix = "\n\n[TRUNCATED]\n"
			maxChars := remaining*4 - len(suffix)
			if maxChars < 1 {
				maxChars = 1
			}
			if maxChars > len(c.Chunk.Content) {
				maxChars = len(c.Chunk.Content)
			}
			// Never cut inside a multi-byte rune.
			for maxChars < len(c.Chunk.Content) && !utf8.RuneStart(c.Chunk.Content[maxChars]) {
				maxChars--
			}
			c.Chunk.Content = strings.TrimRight(c.Chunk.Content[:maxChars], " \n") + suffix
			c.Chunk.TokenCount = remaining
			capped = append(capped, c)
			total += remaining
		}
		break
	}

	if len(capped) < len(candidates) {
		logger.Debug("Prompt sources capped: kept %d of %d (token budget %d)", len(capped), len(candidates), t.settings.PromptMaxTokens)
	}
	return capped
}
