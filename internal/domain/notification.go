package domain

import "time"

// NotificationTrigger is one deduplicated delivery unit. Exactly one
// successful processing per DedupeKey.
type NotificationTrigger struct {
	ID               string
	RecipientUserIDs []string
	Title            string
	Body             string
	Payload          map[string]string
	DedupeKey        string
	Processed        bool
	ProcessedAt      *time.Time
	BadgeHint        *int
	CreatedAt        time.Time
}
