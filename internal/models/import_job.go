package models

import (
	"time"

	"github.com/google/uuid"
)

// ImportSource identifies the external system a job pulls from
type ImportSource string

const (
	ImportSourceHelpScout ImportSource = "helpscout"
)

// ImportStatus represents the lifecycle state of an import job
type ImportStatus string

const (
	ImportStatusRunning   ImportStatus = "running"
	ImportStatusCompleted ImportStatus = "completed"
	ImportStatusError     ImportStatus = "error"
)

// ImportError is one recorded failure from a run
type ImportError struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ImportJob is the durable record tracking one import run
type ImportJob struct {
	ID                    string                 `json:"id"`
	OrganizationID        string                 `json:"organization_id"`
	Source                ImportSource           `json:"source"`
	Status                ImportStatus           `json:"status"`
	TotalMailboxes        int                    `json:"total_mailboxes"`
	TotalConversations    int                    `json:"total_conversations"`
	ConversationsImported int                    `json:"conversations_imported"`
	MessagesImported      int                    `json:"messages_imported"`
	CustomersImported     int                    `json:"customers_imported"`
	Errors                []ImportError          `json:"errors"`
	Metadata              map[string]interface{} `json:"metadata"`
	StartedAt             time.Time              `json:"started_at"`
	CompletedAt           *time.Time             `json:"completed_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
}

// NewImportJob creates a new running ImportJob with a generated UUID
func NewImportJob(organizationID string, source ImportSource, metadata map[string]interface{}) *ImportJob {
	now := time.Now()
	if metadata == nil {
		metadata = map[string]interface{}{}
	}
	return &ImportJob{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Source:         source,
		Status:         ImportStatusRunning,
		Errors:         []ImportError{},
		Metadata:       metadata,
		StartedAt:      now,
		UpdatedAt:      now,
	}
}

// IsRunning checks if the job is still running
func (j *ImportJob) IsRunning() bool {
	return j.Status == ImportStatusRunning
}

// AddError appends a failure to the job's error list
func (j *ImportJob) AddError(message string) {
	j.Errors = append(j.Errors, ImportError{
		Message:   message,
		Timestamp: time.Now(),
	})
}

// MarkCompleted marks the job as completed
func (j *ImportJob) MarkCompleted() {
	now := time.Now()
	j.Status = ImportStatusCompleted
	j.CompletedAt = &now
}

// MarkError marks the job as failed
func (j *ImportJob) MarkError() {
	now := time.Now()
	j.Status = ImportStatusError
	j.CompletedAt = &now
}
