package repositories

import (
	"database/sql"
	"sync"

	"github.com/freedesk/freedesk/internal/models"
)

// InboxRepository handles database operations for inboxes
type InboxRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewInboxRepository creates a new InboxRepository
func NewInboxRepository(db *sql.DB) *InboxRepository {
	return &InboxRepository{db: db}
}

// Create creates a new inbox
func (r *InboxRepository) Create(inbox *models.Inbox) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	query := `
		INSERT INTO inboxes (id, organization_id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		inbox.ID,
		inbox.OrganizationID,
		inbox.Name,
		inbox.Email,
		inbox.CreatedAt,
		inbox.UpdatedAt,
	)
	return err
}

// GetByID retrieves an inbox by ID
func (r *InboxRepository) GetByID(id string) (*models.Inbox, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, organization_id, name, email, created_at, updated_at
		FROM inboxes WHERE id = ?
	`

	inbox := &models.Inbox{}
	err := r.db.QueryRow(query, id).Scan(
		&inbox.ID,
		&inbox.OrganizationID,
		&inbox.Name,
		&inbox.Email,
		&inbox.CreatedAt,
		&inbox.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return inbox, nil
}

// CountByOrganizationID counts the inboxes belonging to an organization
func (r *InboxRepository) CountByOrganizationID(organizationID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM inboxes WHERE organization_id = ?`, organizationID).Scan(&count)
	return count, err
}
