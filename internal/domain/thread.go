package domain

import "time"

// ThreadStatus enumerates lifecycle states for a work item's thread.
type ThreadStatus string

const (
	ThreadStatusOpen       ThreadStatus = "OPEN"
	ThreadStatusScheduled  ThreadStatus = "SCHEDULED"
	ThreadStatusInProgress ThreadStatus = "IN_PROGRESS"
	ThreadStatusCompleted  ThreadStatus = "COMPLETED"
	ThreadStatusCancelled  ThreadStatus = "CANCELLED"
)

// Valid reports whether the status is a known variant.
func (s ThreadStatus) Valid() bool {
	switch s {
	case ThreadStatusOpen, ThreadStatusScheduled, ThreadStatusInProgress,
		ThreadStatusCompleted, ThreadStatusCancelled:
		return true
	}
	return false
}

// Thread is the conversation attached to one work item.
type Thread struct {
	ID             string
	Title          string
	OwnerID        string
	ParticipantIDs []string
	Status         ThreadStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// ThreadEventKind distinguishes the sub-events merged into a context snapshot.
type ThreadEventKind string

const (
	EventKindMessage    ThreadEventKind = "MESSAGE"
	EventKindStatus     ThreadEventKind = "STATUS"
	EventKindAttachment ThreadEventKind = "ATTACHMENT"
)

// Valid reports whether the kind is a known variant.
func (k ThreadEventKind) Valid() bool {
	switch k {
	case EventKindMessage, EventKindStatus, EventKindAttachment:
		return true
	}
	return false
}

// ThreadEvent is an immutable timeline entry recorded alongside messages:
// status changes and attachment uploads, used for context aggregation.
type ThreadEvent struct {
	ID        string
	ThreadID  string
	Kind      ThreadEventKind
	ActorID   string
	Summary   string
	CreatedAt time.Time
}
