package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/veda-labs/examtutor/internal/core/domain"
	"github.com/veda-labs/examtutor/internal/core/ports/driven"
)

// ==================== Memory Store ====================

// memoryStore implements driven.MemoryStore.
type memoryStore struct {
	store *Store
}

var _ driven.MemoryStore = (*memoryStore)(nil)

// EnsureConversation returns the conversation ID, creating the row when
// id is empty or unknown.
func (m *memoryStore) EnsureConversation(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	_, err := m.store.db.ExecContext(ctx, `
		INSERT INTO conversations (id, created_at) VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("ensuring conversation: %w", err)
	}
	return id, nil
}

// AddMessage appends a message to a conversation.
func (m *memoryStore) AddMessage(ctx context.Context, conversationID, role, content string) error {
	_, err := m.store.db.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, role, content, created_at)
		VALUES (?, ?, ?, ?)
	`, conversationID, role, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adding message: %w", err)
	}
	return nil
}

// RecentMessages returns up to limit most recent messages in
// chronological order.
func (m *memoryStore) RecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.ChatMessage, error) {
	rows, err := m.store.db.QueryContext(ctx, `
		SELECT role, content FROM messages
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		if err := rows.Scan(&msg.Role, &msg.Content); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Newest-first from the query; flip to chronological.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ==================== Feedback Store ====================

// feedbackStore implements driven.FeedbackStore.
type feedbackStore struct {
	store *Store
}

var _ driven.FeedbackStore = (*feedbackStore)(nil)

// SaveFeedback stores one feedback record.
func (f *feedbackStore) SaveFeedback(ctx context.Context, fb *domain.Feedback) error {
	if err := fb.Validate(); err != nil {
		return err
	}
	if fb.ID == "" {
		fb.ID = uuid.New().String()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	payloadJSON, err := json.Marshal(fb.Payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	_, err = f.store.db.ExecContext(ctx, `
		INSERT INTO feedback (id, conversation_id, rating, notes, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fb.ID, fb.ConversationID, fb.Rating, fb.Notes, string(payloadJSON), fb.CreatedAt)
	if err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}
	return nil
}

// GetFeedback retrieves one feedback record by ID.
func (f *feedbackStore) GetFeedback(ctx context.Context, id string) (*domain.Feedback, error) {
	row := f.store.db.QueryRowContext(ctx, `
		SELECT id, conversation_id, rating, notes, payload, created_at
		FROM feedback WHERE id = ?
	`, id)

	var fb domain.Feedback
	var payloadJSON string
	var createdAt sql.NullTime
	err := row.Scan(&fb.ID, &fb.ConversationID, &fb.Rating, &fb.Notes, &payloadJSON, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning feedback: %w", err)
	}
	if err := json.Unmarshal([]byte(payloadJSON), &fb.Payload); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}
	if createdAt.Valid {
		fb.CreatedAt = createdAt.Time
	}
	return &fb, nil
}
