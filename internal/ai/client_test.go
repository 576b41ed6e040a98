package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/thread-service/internal/config"
	"github.com/spec-kit/thread-service/internal/domain"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

func TestCompleteRoundTrip(t *testing.T) {
	var received completionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "I can send a quote tomorrow."})
	}))
	defer srv.Close()

	client := NewClient(config.AIConfig{Endpoint: srv.URL, APIKey: "test-key", TimeoutSeconds: 5})
	snapshot := domain.ContextSnapshot{
		ThreadID: "thread-1",
		Items: []domain.SnapshotItem{
			{Kind: domain.EventKindMessage, ActorID: "alice", ActorKind: domain.AuthorKindHuman, Body: "sink leaks"},
			{Kind: domain.EventKindStatus, ActorID: "bob", Body: "OPEN -> SCHEDULED"},
		},
	}

	text, err := client.Complete(context.Background(), snapshot, "how much?")
	require.NoError(t, err)
	require.Equal(t, "I can send a quote tomorrow.", text)
	require.Equal(t, "thread-1", received.ThreadID)
	require.Len(t, received.History, 2)
	require.Equal(t, "how much?", received.Message)
}

func TestCompleteTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(config.AIConfig{Endpoint: srv.URL, TimeoutSeconds: 5})
	client.timeout = 50 * time.Millisecond
	client.http.Timeout = 0

	_, err := client.Complete(context.Background(), domain.ContextSnapshot{}, "hello?")
	require.True(t, apperrors.IsCode(err, "AI_TIMEOUT"))
}

func TestCompleteRequiresEndpoint(t *testing.T) {
	client := NewClient(config.AIConfig{})
	_, err := client.Complete(context.Background(), domain.ContextSnapshot{}, "hi")
	require.Error(t, err)
}

func TestCompleteNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(config.AIConfig{Endpoint: srv.URL, TimeoutSeconds: 5})
	_, err := client.Complete(context.Background(), domain.ContextSnapshot{}, "hi")
	require.Error(t, err)
	require.False(t, apperrors.IsCode(err, "AI_TIMEOUT"))
}
