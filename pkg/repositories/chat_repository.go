package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/askdb-io/askdb-engine/pkg/apperrors"
	"github.com/askdb-io/askdb-engine/pkg/database"
	"github.com/askdb-io/askdb-engine/pkg/models"
)

// ChatRepository defines the interface for chat history data access.
// The log is append-only; messages are never updated or deleted individually.
type ChatRepository interface {
	// Append inserts a new message at the end of the user's history.
	Append(ctx context.Context, msg *models.ChatMessage) error

	// AppendPair inserts a question and its answer in one transaction, so
	// history never shows a question without its outcome.
	AppendPair(ctx context.Context, userMsg, assistantMsg *models.ChatMessage) error

	// ListRecent retrieves the most recent messages for a user in
	// chronological order, capped at limit.
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ChatMessage, error)
}

// chatRepository implements ChatRepository using PostgreSQL.
// Payloads are stored as JSONB; a CHECK constraint rejects empty objects.
type chatRepository struct {
	db *database.DB
}

// NewChatRepository creates a new chat repository.
func NewChatRepository(db *database.DB) ChatRepository {
	return &chatRepository{db: db}
}

func (r *chatRepository) Append(ctx context.Context, msg *models.ChatMessage) error {
	if msg.Payload.IsEmpty() {
		return fmt.Errorf("%w: message payload must not be empty", apperrors.ErrValidation)
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO chat_messages (user_id, role, payload)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err = r.db.QueryRow(ctx, query, msg.UserID, msg.Role, payload).Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	return nil
}

func (r *chatRepository) AppendPair(ctx context.Context, userMsg, assistantMsg *models.ChatMessage) error {
	if userMsg.Payload.IsEmpty() || assistantMsg.Payload.IsEmpty() {
		return fmt.Errorf("%w: message payload must not be empty", apperrors.ErrValidation)
	}

	userPayload, err := json.Marshal(userMsg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	assistantPayload, err := json.Marshal(assistantMsg.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	query := `
		INSERT INTO chat_messages (user_id, role, payload)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err = tx.QueryRow(ctx, query, userMsg.UserID, userMsg.Role, userPayload).
		Scan(&userMsg.ID, &userMsg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	err = tx.QueryRow(ctx, query, assistantMsg.UserID, assistantMsg.Role, assistantPayload).
		Scan(&assistantMsg.ID, &assistantMsg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chat messages: %w", err)
	}
	return nil
}

func (r *chatRepository) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	// Grab the newest N, then flip to chronological order.
	query := `
		SELECT id, user_id, role, payload, created_at
		FROM (
			SELECT id, user_id, role, payload, created_at
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		var payload []byte
		err := rows.Scan(&msg.ID, &msg.UserID, &msg.Role, &payload, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		if err := json.Unmarshal(payload, &msg.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}

	return messages, nil
}

var _ ChatRepository = (*chatRepository)(nil)
