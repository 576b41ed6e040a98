package domain

import "time"

// DeviceRegistration maps a user to a device push token.
// Duplicate token values are no-ops.
type DeviceRegistration struct {
	UserID    string
	Token     string
	UpdatedAt time.Time
}
