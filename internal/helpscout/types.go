package helpscout

import "time"

// Mailbox is a remote grouping of conversations
type Mailbox struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RemoteCustomer is the contact attached to a remote conversation
type RemoteCustomer struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first"`
	LastName  string `json:"last"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// Name joins the customer's name parts
func (c RemoteCustomer) Name() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// Conversation is a remote conversation as listed by the API
type Conversation struct {
	ID              int64          `json:"id"`
	Subject         string         `json:"subject"`
	Status          string         `json:"status"`
	CreatedAt       time.Time      `json:"createdAt"`
	PrimaryCustomer RemoteCustomer `json:"primaryCustomer"`
}

// Thread is a single entry in a remote conversation's history.
// Type is one of "customer", "message", "note" for importable entries;
// other values (lineitem, phone, chat) are system entries.
type Thread struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// page is the pagination indicator in every collection envelope
type page struct {
	Size          int `json:"size"`
	TotalElements int `json:"totalElements"`
	TotalPages    int `json:"totalPages"`
	Number        int `json:"number"`
}

type mailboxesEnvelope struct {
	Embedded struct {
		Mailboxes []Mailbox `json:"mailboxes"`
	} `json:"_embedded"`
	Page page `json:"page"`
}

type conversationsEnvelope struct {
	Embedded struct {
		Conversations []Conversation `json:"conversations"`
	} `json:"_embedded"`
	Page page `json:"page"`
}

type threadsEnvelope struct {
	Embedded struct {
		Threads []Thread `json:"threads"`
	} `json:"_embedded"`
	Page page `json:"page"`
}
