package models

import (
	"time"

	"github.com/google/uuid"
)

// Inbox is a local routing target for conversations
type Inbox struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewInbox creates a new Inbox with a generated UUID
func NewInbox(organizationID, name, email string) *Inbox {
	now := time.Now()
	return &Inbox{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Name:           name,
		Email:          email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
