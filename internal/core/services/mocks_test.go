package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbedder implements driven.EmbeddingService for testing.
type mockEmbedder struct {
	dims       int
	embedErr   error
	batchCalls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return fakeVector(text, m.dims), nil
}

func (m *mockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	m.batchCalls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = fakeVector(t, m.dims)
	}
	return out, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }

func (m *mockEmbedder) ModelName() string { return "mock-embedder" }

// fakeVector is a deterministic stand-in embedding.
func fakeVector(text string, dims int) []float32 {
	v := make([]float32, dims)
	for i := range v {
		v[i] = float32((len(text)+i)%7) + 1
	}
	return v
}

// mockVectorStore implements driven.VectorStore for testing.
type mockVectorStore struct {
	mu        sync.Mutex
	dims      int
	chunks    map[string][]domain.Chunk
	hits      []domain.RetrievalCandidate
	schemaErr error
	writeErr  error
	searchErr error
}

func newMockVectorStore() *mockVectorStore {
	return &mockVectorStore{chunks: make(map[string][]domain.Chunk)}
}

func (m *mockVectorStore) EnsureSchema(_ context.Context, dims int) error {
	if m.schemaErr != nil {
		return m.schemaErr
	}
	if m.dims != 0 && m.dims != dims {
		return fmt.Errorf("%w: store has %d, got %d", domain.ErrDimensionMismatch, m.dims, dims)
	}
	m.dims = dims
	return nil
}

func (m *mockVectorStore) ReplaceDocumentChunks(_ context.Context, documentID string, chunks []domain.Chunk) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[documentID] = chunks
	return nil
}

func (m *mockVectorStore) DeleteDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, documentID)
	return nil
}

func (m *mockVectorStore) Search(_ context.Context, _ []float32, _ domain.RetrievalFilters, topK int) ([]domain.RetrievalCandidate, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if topK > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:topK], nil
}

func (m *mockVectorStore) CountChunks(_ context.Context, documentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks[documentID]), nil
}

// mockDocStore implements driven.DocumentStore for testing.
type mockDocStore struct {
	mu      sync.Mutex
	docs    map[string]*domain.Document
	saveErr error
}

func newMockDocStore() *mockDocStore {
	return &mockDocStore{docs: make(map[string]*domain.Document)}
}

func (m *mockDocStore) SaveDocument(_ context.Context, doc *domain.Document) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *mockDocStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return doc, nil
}

func (m *mockDocStore) DeleteDocument(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, *d)
	}
	return out, nil
}

// mockJobStore implements driven.JobStore with the real state machine.
type mockJobStore struct {
	mu   sync.Mutex
	jobs map[string]*domain.IngestionJob
}

func newMockJobStore() *mockJobStore {
	return &mockJobStore{jobs: make(map[string]*domain.IngestionJob)}
}

func (m *mockJobStore) ResetQueued(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if j, ok := m.jobs[documentID]; ok && !j.Status.Terminal() {
		return domain.ErrJobConflict
	}
	m.jobs[documentID] = &domain.IngestionJob{DocumentID: documentID, Status: domain.JobQueued}
	return nil
}

func (m *mockJobStore) Claim(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[documentID]
	if !ok || j.Status != domain.JobQueued {
		return domain.ErrJobNotClaimable
	}
	j.Status = domain.JobRunning
	return nil
}

func (m *mockJobStore) MarkDone(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[documentID].Status = domain.JobDone
	return nil
}

func (m *mockJobStore) MarkFailed(_ context.Context, documentID, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[documentID].Status = domain.JobFailed
	m.jobs[documentID].Error = errMsg
	return nil
}

func (m *mockJobStore) Get(_ context.Context, documentID string) (*domain.IngestionJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[documentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

// mockDispatcher records enqueued document IDs.
type mockDispatcher struct {
	mu       sync.Mutex
	enqueued []string
	err      error
}

func (m *mockDispatcher) Enqueue(_ context.Context, documentID string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enqueued = append(m.enqueued, documentID)
	return nil
}

// mockExtractor implements driven.Extractor.
type mockExtractor struct {
	text string
	err  error
}

func (m *mockExtractor) Extract(_ context.Context, _ string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

// mockReranker implements driven.RerankScorer.
type mockReranker struct {
	scores []float64
	err    error
	calls  int
}

func (m *mockReranker) Score(_ context.Context, _ string, passages []string) ([]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.scores) >= len(passages) {
		return m.scores[:len(passages)], nil
	}
	return m.scores, nil
}

// mockLLM implements driven.LLMService.
type mockLLM struct {
	answer    string
	tokens    []string
	chatErr   error
	streamErr error
	lastMsgs  []domain.ChatMessage
}

func (m *mockLLM) Chat(_ context.Context, messages []domain.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.lastMsgs = messages
	if m.chatErr != nil {
		return "", m.chatErr
	}
	return m.answer, nil
}

func (m *mockLLM) StreamChat(_ context.Context, messages []domain.ChatMessage, _ driven.ChatOptions, onDelta func(string) error) error {
	m.lastMsgs = messages
	if m.streamErr != nil {
		return m.streamErr
	}
	for _, tok := range m.tokens {
		if err := onDelta(tok); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockLLM) ModelName() string { return "mock-llm" }

// mockMemory implements driven.MemoryStore.
type mockMemory struct {
	mu       sync.Mutex
	nextID   string
	messages map[string][]domain.ChatMessage
	addErr   error
}

func newMockMemory(nextID string) *mockMemory {
	return &mockMemory{nextID: nextID, messages: make(map[string][]domain.ChatMessage)}
}

func (m *mockMemory) EnsureConversation(_ context.Context, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	return m.nextID, nil
}

func (m *mockMemory) AddMessage(_ context.Context, conversationID, role, content string) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[conversationID] = append(m.messages[conversationID], domain.ChatMessage{Role: role, Content: content})
	return nil
}

func (m *mockMemory) RecentMessages(_ context.Context, conversationID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// mockRetriever implements driving.RetrieveService.
type mockRetriever struct {
	candidates  []domain.RetrievalCandidate
	err         error
	lastFilters domain.RetrievalFilters
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, filters domain.RetrievalFilters, _, topN int) ([]domain.RetrievalCandidate, error) {
	m.lastFilters = filters
	if m.err != nil {
		return nil, m.err
	}
	if topN < len(m.candidates) {
		return m.candidates[:topN], nil
	}
	return m.candidates, nil
}
