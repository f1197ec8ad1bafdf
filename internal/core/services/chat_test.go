package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veda-labs/examtutor/internal/core/domain"
)

func tutorCandidates() []domain.RetrievalCandidate {
	return []domain.RetrievalCandidate{
		{
			Chunk: domain.Chunk{
				DocumentID:  "doc-1",
				Index:       0,
				Content:     "The first law of thermodynamics is energy conservation.",
				TokenCount:  12,
				Exam:        "GATE_DA",
				Subject:     "physics",
				SourceTitle: "Thermo Notes",
			},
			Distance: 0.1,
			Score:    domain.SimilarityFromDistance(0.1),
		},
		{
			Chunk: domain.Chunk{
				DocumentID:  "doc-1",
				Index:       3,
				Content:     "Entropy never decreases in an isolated system.",
				TokenCount:  10,
				Exam:        "GATE_DA",
				Subject:     "physics",
				SourceTitle: "Thermo Notes",
			},
			Distance: 0.3,
			Score:    domain.SimilarityFromDistance(0.3),
		},
	}
}

func newTestTutor(retriever *mockRetriever, llm *mockLLM, memory *mockMemory) *Tutor {
	return NewTutor(retriever, llm, memory, TutorSettings{DefaultExam: "GATE_DA"})
}

func TestChatReturnsGroundedAnswer(t *testing.T) {
	retriever := &mockRetriever{candidates: tutorCandidates()}
	llm := &mockLLM{answer: "Energy is conserved [chunk:abc]."}
	memory := newMockMemory("conv-1")
	tutor := newTestTutor(retriever, llm, memory)

	answer, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "state the first law"})
	require.NoError(t, err)

	assert.Equal(t, "conv-1", answer.ConversationID)
	assert.Equal(t, "Energy is conserved [chunk:abc].", answer.Answer)
	require.Len(t, answer.Citations, 2)
	assert.Equal(t, "Thermo Notes", answer.Citations[0].SourceTitle)
	assert.Len(t, answer.UsedChunks, 2)
}

func TestChatPromptContainsSourcesAndQuestion(t *testing.T) {
	retriever := &mockRetriever{candidates: tutorCandidates()}
	llm := &mockLLM{answer: "ok"}
	tutor := newTestTutor(retriever, llm, newMockMemory("conv-1"))

	_, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "state the first law"})
	require.NoError(t, err)

	require.Len(t, llm.lastMsgs, 2)
	assert.Equal(t, "system", llm.lastMsgs[0].Role)
	assert.Contains(t, llm.lastMsgs[0].Content, "Exam Tutor")
	assert.Contains(t, llm.lastMsgs[0].Content, "Target exam: GATE_DA")

	user := llm.lastMsgs[1].Content
	assert.Contains(t, user, "SOURCES:")
	assert.Contains(t, user, "[chunk:")
	assert.Contains(t, user, "energy conservation")
	assert.Contains(t, user, "USER QUESTION:\nstate the first law")
}

func TestChatModeChangesPromptOnly(t *testing.T) {
	retriever := &mockRetriever{candidates: tutorCandidates()}
	llm := &mockLLM{answer: "ok"}
	tutor := newTestTutor(retriever, llm, newMockMemory("conv-1"))

	_, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "quiz me", Mode: domain.ModePractice})
	require.NoError(t, err)
	assert.Contains(t, llm.lastMsgs[0].Content, "Create practice")

	_, err = tutor.Chat(context.Background(), domain.ChatRequest{Message: "quiz me", Mode: domain.ModePYQ})
	require.NoError(t, err)
	assert.Contains(t, llm.lastMsgs[0].Content, "PYQ trainer")
}

func TestChatDefaultsToDoubtMode(t *testing.T) {
	retriever := &mockRetriever{candidates: nil}
	llm := &mockLLM{answer: "ok"}
	tutor := newTestTutor(retriever, llm, newMockMemory("conv-1"))

	_, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Contains(t, llm.lastMsgs[0].Content, "Answer as a teacher")
}

func TestChatRejectsUnknownMode(t *testing.T) {
	tutor := newTestTutor(&mockRetriever{}, &mockLLM{}, newMockMemory("conv-1"))

	_, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "hi", Mode: "socratic"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	tutor := newTestTutor(&mockRetriever{}, &mockLLM{}, newMockMemory("conv-1"))

	_, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestChatNoSourcesStillAnswers(t *testing.T) {
	retriever := &mockRetriever{candidates: nil}
	llm := &mockLLM{answer: "I do not have enough information."}
	tutor := newTestTutor(retriever, llm, newMockMemory("conv-1"))

	answer, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "who won in 1987"})
	require.NoError(t, err)
	assert.Empty(t, answer.Citations)
	assert.Contains(t, llm.lastMsgs[1].Content, "(no sources retrieved)")
}

func TestChatWeakSourcesFilteredByScoreFloor(t *testing.T) {
	weak := tutorCandidates()
	weak[0].Score = 0.05
	weak[1].Score = 0.02
	retriever := &mockRetriever{candidates: weak}
	llm := &mockLLM{answer: "ok"}
	tutor := newTestTutor(retriever, llm, newMockMemory("conv-1"))

	answer, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "state the first law"})
	require.NoError(t, err)
	assert.Empty(t, answer.UsedChunks)
	assert.Contains(t, llm.lastMsgs[1].Content, "(no sources retrieved)")
}

func TestChatExcludesNoiseTagsByDefault(t *testing.T) {
	retriever := &mockRetriever{candidates: tutorCandidates()}
	llm := &mockLLM{answer: "ok"}
	tutor := newTestTutor(retriever, llm, newMockMemory("conv-1"))

	_, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "state the first law"})
	require.NoError(t, err)

	assert.Equal(t, DefaultExcludeTags(), retriever.lastFilters.ExcludeTags,
		"tagged noise chunks must be excluded from grounding")
}

func TestChatExclusionPolicyConfigurable(t *testing.T) {
	retriever := &mockRetriever{candidates: tutorCandidates()}
	llm := &mockLLM{answer: "ok"}
	tutor := NewTutor(retriever, llm, newMockMemory("conv-1"), TutorSettings{
		DefaultExam:     "GATE_DA",
		ExcludeTags:     []string{domain.TagDuplicate},
		MinQualityScore: 0.4,
	})

	_, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "state the first law"})
	require.NoError(t, err)

	assert.Equal(t, []string{domain.TagDuplicate}, retriever.lastFilters.ExcludeTags)
	assert.Equal(t, 0.4, retriever.lastFilters.MinQualityScore)
}

func TestChatMemoryEntersPromptWithoutCurrentTurn(t *testing.T) {
	retriever := &mockRetriever{candidates: nil}
	llm := &mockLLM{answer: "second answer"}
	memory := newMockMemory("conv-1")
	require.NoError(t, memory.AddMessage(context.Background(), "conv-1", "user", "earlier question"))
	require.NoError(t, memory.AddMessage(context.Background(), "conv-1", "assistant", "earlier answer"))
	tutor := newTestTutor(retriever, llm, memory)

	_, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "follow-up question", ConversationID: "conv-1"})
	require.NoError(t, err)

	user := llm.lastMsgs[1].Content
	assert.Contains(t, user, "CHAT MEMORY")
	assert.Contains(t, user, "USER: earlier question")
	assert.Contains(t, user, "ASSISTANT: earlier answer")

	memoryIdx := strings.Index(user, "CHAT MEMORY")
	questionIdx := strings.Index(user, "USER QUESTION:")
	assert.Less(t, memoryIdx, questionIdx)
	assert.NotContains(t, user[:questionIdx], "follow-up question", "current turn must not appear in the memory block")
}

func TestChatPersistsBothTurns(t *testing.T) {
	retriever := &mockRetriever{candidates: nil}
	llm := &mockLLM{answer: "the answer"}
	memory := newMockMemory("conv-1")
	tutor := newTestTutor(retriever, llm, memory)

	_, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "a question"})
	require.NoError(t, err)

	msgs, err := memory.RecentMessages(context.Background(), "conv-1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.ChatMessage{Role: "user", Content: "a question"}, msgs[0])
	assert.Equal(t, domain.ChatMessage{Role: "assistant", Content: "the answer"}, msgs[1])
}

func TestChatSourceCapRespectsTokenBudget(t *testing.T) {
	big := []domain.RetrievalCandidate{
		{Chunk: domain.Chunk{DocumentID: "d", Index: 0, Content: strings.Repeat("x ", 2000), TokenCount: 1000}, Distance: 0.1, Score: 0.9},
		{Chunk: domain.Chunk{DocumentID: "d", Index: 1, Content: strings.Repeat("y ", 2000), TokenCount: 1000}, Distance: 0.2, Score: 0.8},
	}
	retriever := &mockRetriever{candidates: big}
	llm := &mockLLM{answer: "ok"}
	tutor := NewTutor(retriever, llm, newMockMemory("conv-1"), TutorSettings{DefaultExam: "GATE_DA", PromptMaxTokens: 1200, PromptMaxChunks: 4})

	answer, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "q"})
	require.NoError(t, err)
	require.Len(t, answer.UsedChunks, 1, "second chunk exceeds the token budget")
}

func TestChatOversizedTopChunkTruncated(t *testing.T) {
	big := []domain.RetrievalCandidate{
		{Chunk: domain.Chunk{DocumentID: "d", Index: 0, Content: strings.Repeat("z", 20000), TokenCount: 5000}, Distance: 0.1, Score: 0.9},
	}
	retriever := &mockRetriever{candidates: big}
	llm := &mockLLM{answer: "ok"}
	tutor := NewTutor(retriever, llm, newMockMemory("conv-1"), TutorSettings{DefaultExam: "GATE_DA", PromptMaxTokens: 100})

	answer, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "q"})
	require.NoError(t, err)
	require.Len(t, answer.UsedChunks, 1)
	assert.Contains(t, answer.UsedChunks[0].Chunk.Content, "[TRUNCATED]")
	assert.LessOrEqual(t, answer.UsedChunks[0].Chunk.TokenCount, 100)
}

func TestChatTruncationKeepsValidUTF8(t *testing.T) {
	// Multi-byte content whose byte budget lands mid-rune.
	big := []domain.RetrievalCandidate{
		{Chunk: domain.Chunk{DocumentID: "d", Index: 0, Content: strings.Repeat("ऊर्जा ", 2000), TokenCount: 5000}, Distance: 0.1, Score: 0.9},
	}
	retriever := &mockRetriever{candidates: big}
	llm := &mockLLM{answer: "ok"}
	tutor := NewTutor(retriever, llm, newMockMemory("conv-1"), TutorSettings{DefaultExam: "GATE_DA", PromptMaxTokens: 100})

	answer, err := tutor.Chat(context.Background(), domain.ChatRequest{Message: "q"})
	require.NoError(t, err)
	require.Len(t, answer.UsedChunks, 1)
	assert.True(t, utf8.ValidString(answer.UsedChunks[0].Chunk.Content),
		"truncation must land on a rune boundary")
	assert.Contains(t, answer.UsedChunks[0].Chunk.Content, "[TRUNCATED]")
}

func TestStreamChatEmitsTokensThenFinal(t *testing.T) {
	retriever := &mockRetriever{candidates: tutorCandidates()}
	llm := &mockLLM{tokens: []string{"Energy ", "is ", "conserved."}}
	memory := newMockMemory("conv-1")
	tutor := newTestTutor(retriever, llm, memory)

	var events []domain.StreamEvent
	err := tutor.StreamChat(context.Background(), domain.ChatRequest{Message: "state the first law"}, func(ev domain.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 4)
	for _, ev := range events[:3] {
		assert.Equal(t, domain.EventToken, ev.Type)
	}
	final := events[3]
	assert.Equal(t, domain.EventFinal, final.Type)
	require.NotNil(t, final.Final)
	assert.Equal(t, "Energy is conserved.", final.Final.Answer)
	assert.Equal(t, "conv-1", final.Final.ConversationID)

	// Concatenated deltas equal the final answer.
	var sb strings.Builder
	for _, ev := range events[:3] {
		sb.WriteString(ev.Delta)
	}
	assert.Equal(t, final.Final.Answer, strings.TrimSpace(sb.String()))

	msgs, _ := memory.RecentMessages(context.Background(), "conv-1", 10)
	require.Len(t, msgs, 2)
	assert.Equal(t, "assistant", msgs[1].Role)
}

func TestStreamChatLLMFailureEmitsErrorEvent(t *testing.T) {
	retriever := &mockRetriever{candidates: nil}
	llm := &mockLLM{streamErr: errors.New("upstream 502")}
	memory := newMockMemory("conv-1")
	tutor := newTestTutor(retriever, llm, memory)

	var events []domain.StreamEvent
	err := tutor.StreamChat(context.Background(), domain.ChatRequest{Message: "q"}, func(ev domain.StreamEvent) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, domain.EventError, events[0].Type)
	assert.Contains(t, events[0].Err, "upstream 502")

	// The user turn is persisted, the assistant turn is not.
	msgs, _ := memory.RecentMessages(context.Background(), "conv-1", 10)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].Role)
}

func TestStreamChatConsumerCancelPropagates(t *testing.T) {
	retriever := &mockRetriever{candidates: nil}
	llm := &mockLLM{tokens: []string{"a", "b", "c"}}
	tutor := newTestTutor(retriever, llm, newMockMemory("conv-1"))

	stop := errors.New("client gone")
	err := tutor.StreamChat(context.Background(), domain.ChatRequest{Message: "q"}, func(ev domain.StreamEvent) error {
		return stop
	})
	assert.ErrorIs(t, err, stop)
}
