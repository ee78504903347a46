package repositories

import (
	"database/sql"
	"sync"

	"github.com/freedesk/freedesk/internal/models"
)

// MessageRepository handles database operations for messages
type MessageRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create creates a new message
func (r *MessageRepository) Create(message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO messages (id, conversation_id, external_id, body, message_type, customer_visible, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		message.ID,
		message.ConversationID,
		message.ExternalID,
		message.Body,
		message.Type,
		message.CustomerVisible,
		message.CreatedAt,
	)
	return err
}

// GetByConversationID retrieves all messages of a conversation in insertion order
func (r *MessageRepository) GetByConversationID(conversationID string) ([]*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, conversation_id, external_id, body, message_type, customer_visible, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		message := &models.Message{}
		err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.ExternalID,
			&message.Body,
			&message.Type,
			&message.CustomerVisible,
			&message.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, nil
}

// CountByConversationID counts the messages in a conversation
func (r *MessageRepository) CountByConversationID(conversationID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&count)
	return count, err
}
