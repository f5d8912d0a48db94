package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talendro/talendro-api/internal/models"
)

// MessageRepository handles chat message data access. Messages are append-only.
type MessageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{
		pool: pool,
	}
}

// Append stores one message and returns its id
func (r *MessageRepository) Append(ctx context.Context, msg *models.ChatMessage) (string, error) {
	query := `
		INSERT INTO chat_messages (session_id, role, content, feedback, question_number)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id string
	err := r.pool.QueryRow(ctx, query, msg.SessionID, msg.Role, msg.Content, msg.Feedback, msg.QuestionNumber).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("failed to append message: %w", err)
	}

	return id, nil
}

// ListBySession returns a session's messages in insertion order
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.ChatMessage, error) {
	query := `
		SELECT id, session_id, role, content, feedback, question_number, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Feedback, &m.QuestionNumber, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return messages, nil
}
