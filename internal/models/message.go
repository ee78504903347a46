package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageType distinguishes who authored a message
type MessageType string

const (
	MessageTypeCustomer MessageType = "customer"
	MessageTypeAgent    MessageType = "agent"
	MessageTypeNote     MessageType = "note"
)

// Message is one entry in a conversation's history
type Message struct {
	ID              string      `json:"id"`
	ConversationID  string      `json:"conversation_id"`
	ExternalID      string      `json:"external_id"`
	Body            string      `json:"body"`
	Type            MessageType `json:"type"`
	CustomerVisible bool        `json:"customer_visible"`
	CreatedAt       time.Time   `json:"created_at"`
}

// NewMessage creates a new Message with a generated UUID
func NewMessage(conversationID string, messageType MessageType) *Message {
	return &Message{
		ID:              uuid.New().String(),
		ConversationID:  conversationID,
		Type:            messageType,
		CustomerVisible: messageType != MessageTypeNote,
		CreatedAt:       time.Now(),
	}
}
