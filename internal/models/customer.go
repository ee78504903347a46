package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a local contact a conversation belongs to
type Customer struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewCustomer creates a new Customer with a generated UUID
func NewCustomer(organizationID, name, email, phone string) *Customer {
	now := time.Now()
	return &Customer{
		ID:             uuid.New().String(),
		OrganizationID: organizationID,
		Name:           name,
		Email:          email,
		Phone:          phone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
