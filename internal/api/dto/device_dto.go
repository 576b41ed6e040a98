package dto

// RegisterDeviceRequest registers a platform push token for the caller.
type RegisterDeviceRequest struct {
	Token string `json:"token"`
}
