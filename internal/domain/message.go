package domain

import "time"

// AuthorKind indicates who authored a message.
type AuthorKind string

const (
	AuthorKindHuman     AuthorKind = "HUMAN"
	AuthorKindAutomated AuthorKind = "AUTOMATED"
)

// Valid reports whether the kind is a known variant.
func (k AuthorKind) Valid() bool {
	switch k {
	case AuthorKindHuman, AuthorKindAutomated:
		return true
	}
	return false
}

// DeliveryStatus enumerates the lifecycle of a message on its way to readers.
type DeliveryStatus string

const (
	DeliverySending   DeliveryStatus = "SENDING"
	DeliverySent      DeliveryStatus = "SENT"
	DeliveryDelivered DeliveryStatus = "DELIVERED"
	DeliveryRead      DeliveryStatus = "READ"
	DeliveryFailed    DeliveryStatus = "FAILED"
)

// Valid reports whether the status is a known variant.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliverySending, DeliverySent, DeliveryDelivered, DeliveryRead, DeliveryFailed:
		return true
	}
	return false
}

// Message is one entry in a thread's conversation timeline.
// ReplyCount is maintained by atomic increment only; it is never
// read-modify-written by application code.
type Message struct {
	ID              string
	ThreadID        string
	ClientMsgID     string
	AuthorID        string
	AuthorName      string
	AuthorKind      AuthorKind
	Body            string
	Attachments     []string
	ParentMessageID *string
	ReplyCount      int
	Reactions       []Reaction
	ReadReceipts    []ReadReceipt
	DeliveryStatus  DeliveryStatus
	CreatedAt       time.Time
}

// Reaction is one user's emoji reaction, unique per (emoji, user).
type Reaction struct {
	Emoji     string
	UserID    string
	CreatedAt time.Time
}

// ReadReceipt records that a user has seen a message. A message never
// carries a receipt for its own author.
type ReadReceipt struct {
	UserID   string
	UserName string
	ReadAt   time.Time
}
