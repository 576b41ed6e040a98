package dto

import "time"

// PostMessageRequest is one send. ClientMsgID carries the optimistic
// client id through to the change stream for reconciliation.
type PostMessageRequest struct {
	ClientMsgID     string   `json:"client_msg_id"`
	Body            string   `json:"body"`
	ParentMessageID *string  `json:"parent_message_id,omitempty"`
	Attachments     []string `json:"attachments,omitempty"`
}

// MarkReadRequest upserts receipts up to a timestamp.
type MarkReadRequest struct {
	UpTo time.Time `json:"up_to"`
}

// ReactionRequest toggles one emoji.
type ReactionRequest struct {
	Emoji string `json:"emoji"`
}

// ReactionResponse is one reaction on the wire.
type ReactionResponse struct {
	Emoji     string    `json:"emoji"`
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"ts"`
}

// ReadReceiptResponse is one receipt on the wire.
type ReadReceiptResponse struct {
	UserID   string    `json:"user_id"`
	UserName string    `json:"user_name"`
	ReadAt   time.Time `json:"read_at"`
}

// MessageResponse is the full message wire shape.
type MessageResponse struct {
	ID              string                `json:"id"`
	ThreadID        string                `json:"thread_id"`
	ClientMsgID     string                `json:"client_msg_id,omitempty"`
	AuthorID        string                `json:"author_id"`
	AuthorName      string                `json:"author_name,omitempty"`
	AuthorKind      string                `json:"author_kind"`
	Body            string                `json:"body"`
	Attachments     []string              `json:"attachments,omitempty"`
	ParentMessageID *string               `json:"parent_message_id,omitempty"`
	ReplyCount      int                   `json:"reply_count"`
	Reactions       []ReactionResponse    `json:"reactions,omitempty"`
	ReadReceipts    []ReadReceiptResponse `json:"read_receipts,omitempty"`
	Status          string                `json:"status"`
	CreatedAt       time.Time             `json:"created_at"`
}
