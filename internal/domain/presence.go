package domain

import "time"

// TypingIndicator is an ephemeral, last-write-wins typing signal.
// Consumers treat any indicator with ExpiresAt before now as absent.
type TypingIndicator struct {
	ThreadID  string
	UserID    string
	UserName  string
	ExpiresAt time.Time
}
