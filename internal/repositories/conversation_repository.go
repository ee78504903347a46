package repositories

import (
	"database/sql"
	"sync"

	"github.com/freedesk/freedesk/internal/models"
)

// ConversationRepository handles database operations for conversations
type ConversationRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewConversationRepository creates a new ConversationRepository
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a new conversation
func (r *ConversationRepository) Create(conversation *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO conversations (id, organization_id, inbox_id, customer_id, subject, status, external_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		conversation.ID,
		conversation.OrganizationID,
		conversation.InboxID,
		conversation.CustomerID,
		conversation.Subject,
		conversation.Status,
		conversation.ExternalID,
		conversation.CreatedAt,
		conversation.UpdatedAt,
	)
	return err
}

// GetByExternalID retrieves a conversation by its idempotency key within an organization
func (r *ConversationRepository) GetByExternalID(organizationID, externalID string) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, organization_id, inbox_id, customer_id, subject, status, external_id, created_at, updated_at
		FROM conversations
		WHERE organization_id = ? AND external_id = ?
	`

	conversation := &models.Conversation{}
	err := r.db.QueryRow(query, organizationID, externalID).Scan(
		&conversation.ID,
		&conversation.OrganizationID,
		&conversation.InboxID,
		&conversation.CustomerID,
		&conversation.Subject,
		&conversation.Status,
		&conversation.ExternalID,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return conversation, nil
}

// GetByInboxID retrieves all conversations routed to an inbox
func (r *ConversationRepository) GetByInboxID(inboxID string) ([]*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, organization_id, inbox_id, customer_id, subject, status, external_id, created_at, updated_at
		FROM conversations
		WHERE inbox_id = ?
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(query, inboxID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		conversation := &models.Conversation{}
		err := rows.Scan(
			&conversation.ID,
			&conversation.OrganizationID,
			&conversation.InboxID,
			&conversation.CustomerID,
			&conversation.Subject,
			&conversation.Status,
			&conversation.ExternalID,
			&conversation.CreatedAt,
			&conversation.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conversation)
	}

	return conversations, nil
}

// CountByOrganizationID counts the conversations belonging to an organization
func (r *ConversationRepository) CountByOrganizationID(organizationID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE organization_id = ?`, organizationID).Scan(&count)
	return count, err
}
