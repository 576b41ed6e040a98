package domain

import "time"

// SnapshotItem is one entry in a chronologically merged context snapshot.
type SnapshotItem struct {
	Kind       ThreadEventKind
	ActorID    string
	ActorKind  AuthorKind
	Body       string
	OccurredAt time.Time
}

// ContextSnapshot is the bounded, merged view of thread history handed to
// the AI collaborator. Not persisted long-term.
type ContextSnapshot struct {
	ThreadID string
	Items    []SnapshotItem
	BuiltAt  time.Time
}
