package dto

import "time"

// TypingIndicatorResponse is one active typer.
type TypingIndicatorResponse struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	ExpiresAt time.Time `json:"expires_at"`
}
