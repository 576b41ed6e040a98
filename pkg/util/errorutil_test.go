package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructorsCarryCodeAndStatus(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{NewValidationError("bad input", nil), "VALIDATION_FAILED", http.StatusBadRequest},
		{NewInvalidParent("msg-1"), "INVALID_PARENT", http.StatusUnprocessableEntity},
		{NewTransientIO("push", errors.New("down")), "TRANSIENT_IO", http.StatusServiceUnavailable},
		{NewDuplicateSuppressed("key"), "DUPLICATE_SUPPRESSED", http.StatusOK},
		{NewStaleToken("tok"), "STALE_TOKEN", http.StatusGone},
		{NewConcurrencyConflict("message"), "CONCURRENCY_CONFLICT", http.StatusConflict},
		{NewAITimeout(errors.New("deadline")), "AI_TIMEOUT", http.StatusGatewayTimeout},
		{NewNotFound("thread", nil), "NOT_FOUND", http.StatusNotFound},
		{NewUnauthorized("no token"), "UNAUTHORIZED", http.StatusUnauthorized},
		{NewPermissionDenied("not owner"), "PERMISSION_DENIED", http.StatusForbidden},
		{NewInternalError(errors.New("boom")), "INTERNAL_ERROR", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			require.True(t, IsCode(tt.err, tt.code))
			var domainErr *DomainError
			require.True(t, errors.As(tt.err, &domainErr))
			require.Equal(t, tt.status, domainErr.HTTPStatus)
		})
	}
}

func TestIsCodeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("handling request: %w", NewTransientIO("redis", errors.New("refused")))
	require.True(t, IsTransient(wrapped))
	require.False(t, IsTransient(errors.New("plain")))
	require.False(t, IsTransient(nil))
}

func TestDuplicateSuppressedIsNotFailure(t *testing.T) {
	err := NewDuplicateSuppressed("thread-1:client-9")
	require.True(t, IsDuplicateSuppressed(err))

	var domainErr *DomainError
	require.True(t, errors.As(err, &domainErr))
	require.Equal(t, "thread-1:client-9", domainErr.Details["dedupe_key"])
}

func TestToDomainError(t *testing.T) {
	require.Nil(t, ToDomainError(nil))

	passthrough := ToDomainError(NewNotFound("thread", nil))
	require.Equal(t, "NOT_FOUND", passthrough.Code)

	noRows := ToDomainError(fmt.Errorf("query: %w", sql.ErrNoRows))
	require.Equal(t, "NOT_FOUND", noRows.Code)

	generic := ToDomainError(errors.New("disk full"))
	require.Equal(t, "INTERNAL_ERROR", generic.Code)
	require.Equal(t, http.StatusInternalServerError, generic.HTTPStatus)
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewTransientIO("postgres", cause)
	require.True(t, errors.Is(err, cause))
	require.Contains(t, err.Error(), "postgres temporarily unavailable")
	require.Contains(t, err.Error(), "connection reset")
}
