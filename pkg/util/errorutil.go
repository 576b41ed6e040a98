package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewInvalidParent flags a reply referencing a message that does not exist
// in the same thread.
func NewInvalidParent(parentID string) error {
	return NewDomainError("INVALID_PARENT", "parent message not found in thread",
		http.StatusUnprocessableEntity, map[string]any{"parent_message_id": parentID})
}

// NewTransientIO marks a failure worth retrying with bounded backoff.
func NewTransientIO(op string, err error) error {
	return &DomainError{
		Code:       "TRANSIENT_IO",
		Message:    fmt.Sprintf("%s temporarily unavailable", op),
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// NewDuplicateSuppressed reports an idempotent no-op from dedupe logic.
// Not a failure; callers treat it as success.
func NewDuplicateSuppressed(key string) error {
	return NewDomainError("DUPLICATE_SUPPRESSED", "duplicate suppressed",
		http.StatusOK, map[string]any{"dedupe_key": key})
}

// NewStaleToken reports a push token the provider no longer recognizes.
// Pruned silently, never surfaced to users.
func NewStaleToken(token string) error {
	return NewDomainError("STALE_TOKEN", "device token no longer registered",
		http.StatusGone, map[string]any{"token": token})
}

// NewConcurrencyConflict reports a lost atomic-update race.
func NewConcurrencyConflict(resource string) error {
	return NewDomainError("CONCURRENCY_CONFLICT", fmt.Sprintf("concurrent update on %s", resource),
		http.StatusConflict, nil)
}

// NewAITimeout reports an AI collaborator call that exceeded its bounded
// timeout. Always swallowed; never shown to human participants.
func NewAITimeout(err error) error {
	return &DomainError{
		Code:       "AI_TIMEOUT",
		Message:    "ai collaborator timed out",
		HTTPStatus: http.StatusGatewayTimeout,
		Err:        err,
	}
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewPermissionDenied(message string) error {
	return NewDomainError("PERMISSION_DENIED", message, http.StatusForbidden, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given DomainError code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsDuplicateSuppressed reports whether err is the dedupe no-op marker.
func IsDuplicateSuppressed(err error) bool {
	return IsCode(err, "DUPLICATE_SUPPRESSED")
}

// IsTransient reports whether err should be retried with backoff.
func IsTransient(err error) bool {
	return IsCode(err, "TRANSIENT_IO")
}

// IsStaleToken reports whether err marks a token to prune.
func IsStaleToken(err error) bool {
	return IsCode(err, "STALE_TOKEN")
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewInternalError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
