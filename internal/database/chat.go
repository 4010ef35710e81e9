package database

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChatMessage is one advice exchange.
type ChatMessage struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Message   string
	Response  string
	CreatedAt time.Time
}

// CreateChatMessage stores a question and the advice given for it.
func (db *DB) CreateChatMessage(ctx context.Context, userID uuid.UUID, message, response string) (*ChatMessage, error) {
	var m ChatMessage
	err := db.pool.QueryRow(ctx,
		`INSERT INTO chat_messages (user_id, message, response)
		 VALUES ($1, $2, $3)
		 RETURNING id, user_id, message, response, created_at`,
		userID, message, response,
	).Scan(&m.ID, &m.UserID, &m.Message, &m.Response, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListUserChatMessages returns a user's messages, newest first.
func (db *DB) ListUserChatMessages(ctx context.Context, userID uuid.UUID, limit, offset int) ([]ChatMessage, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, user_id, message, response, created_at
		 FROM chat_messages
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id
		 LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []ChatMessage{}
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.UserID, &m.Message, &m.Response, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// CountUserChatMessages returns the total number of messages for a user.
func (db *DB) CountUserChatMessages(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE user_id = $1`,
		userID,
	).Scan(&count)
	return count, err
}
