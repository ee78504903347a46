package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConversationStatus represents the local three-state status model
type ConversationStatus string

const (
	ConversationStatusOpen    ConversationStatus = "open"
	ConversationStatusPending ConversationStatus = "pending"
	ConversationStatusClosed  ConversationStatus = "closed"
)

// Conversation is a local conversation materialized from a remote source
type Conversation struct {
	ID             string             `json:"id"`
	OrganizationID string             `json:"organization_id"`
	InboxID        string             `json:"inbox_id"`
	CustomerID     string             `json:"customer_id"`
	Subject        string             `json:"subject"`
	Status         ConversationStatus `json:"status"`
	ExternalID     string             `json:"external_id"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// NewConversation creates a new Conversation with a generated UUID
func NewConversation(organizationID, inboxID, customerID string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		InboxID:        inboxID,
		CustomerID:     customerID,
		Status:         ConversationStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ExternalID builds the source-prefixed idempotency key for a remote record
func ExternalID(source ImportSource, remoteID int64) string {
	return fmt.Sprintf("%s_%d", source, remoteID)
}
