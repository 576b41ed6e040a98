package dto

import "time"

// CreateThreadRequest creates the conversation for one work item.
type CreateThreadRequest struct {
	Title          string   `json:"title"`
	ParticipantIDs []string `json:"participant_ids"`
}

// UpdateThreadStatusRequest transitions the work item.
type UpdateThreadStatusRequest struct {
	Status string `json:"status"`
}

// ThreadSummary is the list/detail projection.
type ThreadSummary struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	OwnerID        string    `json:"owner_id"`
	ParticipantIDs []string  `json:"participant_ids"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
