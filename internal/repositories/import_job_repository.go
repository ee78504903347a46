package repositories

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/freedesk/freedesk/internal/models"
)

// ImportJobRepository handles database operations for import jobs
type ImportJobRepository struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewImportJobRepository creates a new ImportJobRepository
func NewImportJobRepository(db *sql.DB) *ImportJobRepository {
	return &ImportJobRepository{db: db}
}

// Create creates a new import job record
func (r *ImportJobRepository) Create(job *models.ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errorsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return err
	}
	metadataJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO import_jobs (id, organization_id, source, status, total_mailboxes, total_conversations,
			conversations_imported, messages_imported, customers_imported, errors, metadata, started_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		job.ID,
		job.OrganizationID,
		job.Source,
		job.Status,
		job.TotalMailboxes,
		job.TotalConversations,
		job.ConversationsImported,
		job.MessagesImported,
		job.CustomersImported,
		string(errorsJSON),
		string(metadataJSON),
		job.StartedAt,
		job.CompletedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID retrieves an import job by ID
func (r *ImportJobRepository) GetByID(id string) (*models.ImportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, organization_id, source, status, total_mailboxes, total_conversations,
			conversations_imported, messages_imported, customers_imported, errors, metadata, started_at, completed_at, updated_at
		FROM import_jobs WHERE id = ?
	`

	return scanImportJob(r.db.QueryRow(query, id))
}

// GetByOrganizationID retrieves all import jobs for an organization, newest first
func (r *ImportJobRepository) GetByOrganizationID(organizationID string) ([]*models.ImportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query := `
		SELECT id, organization_id, source, status, total_mailboxes, total_conversations,
			conversations_imported, messages_imported, customers_imported, errors, metadata, started_at, completed_at, updated_at
		FROM import_jobs
		WHERE organization_id = ?
		ORDER BY started_at DESC
	`

	rows, err := r.db.Query(query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*models.ImportJob
	for rows.Next() {
		job, err := scanImportJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Update persists the job's counters, errors, and status
func (r *ImportJobRepository) Update(job *models.ImportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	errorsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return err
	}
	metadataJSON, err := json.Marshal(job.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE import_jobs
		SET status = ?, total_mailboxes = ?, total_conversations = ?, conversations_imported = ?,
			messages_imported = ?, customers_imported = ?, errors = ?, metadata = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	_, err = r.db.Exec(query,
		job.Status,
		job.TotalMailboxes,
		job.TotalConversations,
		job.ConversationsImported,
		job.MessagesImported,
		job.CustomersImported,
		string(errorsJSON),
		string(metadataJSON),
		job.CompletedAt,
		time.Now(),
		job.ID,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanImportJob(row rowScanner) (*models.ImportJob, error) {
	job := &models.ImportJob{}
	var errorsJSON, metadataJSON string

	err := row.Scan(
		&job.ID,
		&job.OrganizationID,
		&job.Source,
		&job.Status,
		&job.TotalMailboxes,
		&job.TotalConversations,
		&job.ConversationsImported,
		&job.MessagesImported,
		&job.CustomersImported,
		&errorsJSON,
		&metadataJSON,
		&job.StartedAt,
		&job.CompletedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(errorsJSON), &job.Errors); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadataJSON), &job.Metadata); err != nil {
		return nil, err
	}

	return job, nil
}
