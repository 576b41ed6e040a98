package events

import (
	"time"

	"github.com/spec-kit/thread-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventMessagePosted       EventType = "message_posted"
	EventReplyPosted         EventType = "reply_posted"
	EventUserMentioned       EventType = "user_mentioned"
	EventReactionAdded       EventType = "reaction_added"
	EventMessagesRead        EventType = "messages_read"
	EventThreadStatusChanged EventType = "thread_status_changed"
	EventThreadDeleted       EventType = "thread_deleted"
)

// Event represents a domain event emitted by services. Recipients lists
// the users the event concerns; the acting user is excluded downstream.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	ThreadID   string      `json:"thread_id"`
	ActorID    string      `json:"actor_id"`
	Recipients []string    `json:"recipients,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// MessagePostedPayload payload.
type MessagePostedPayload struct {
	MessageID   string            `json:"message_id"`
	ClientMsgID string            `json:"client_msg_id,omitempty"`
	AuthorKind  domain.AuthorKind `json:"author_kind"`
	ParentID    *string           `json:"parent_message_id,omitempty"`
	BodyPreview string            `json:"body_preview"`
}

// UserMentionedPayload payload.
type UserMentionedPayload struct {
	MessageID       string `json:"message_id"`
	MentionedUserID string `json:"mentioned_user_id"`
}

// ReactionAddedPayload payload.
type ReactionAddedPayload struct {
	MessageID string `json:"message_id"`
	Emoji     string `json:"emoji"`
}

// MessagesReadPayload payload.
type MessagesReadPayload struct {
	UserID   string    `json:"user_id"`
	UpTo     time.Time `json:"up_to"`
	Receipts int64     `json:"receipts"`
}

// ThreadStatusChangedPayload payload.
type ThreadStatusChangedPayload struct {
	OldStatus domain.ThreadStatus `json:"old_status"`
	NewStatus domain.ThreadStatus `json:"new_status"`
}
