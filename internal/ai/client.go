// Package ai holds the AI-completion collaborator client. One bounded
// timeout per call; any failure is swallowed upstream and no automated
// message is posted.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spec-kit/thread-service/internal/config"
	"github.com/spec-kit/thread-service/internal/domain"
	apperrors "github.com/spec-kit/thread-service/pkg/util"
)

// Completer turns a context snapshot plus the latest user message into a
// plain-text reply.
type Completer interface {
	Complete(ctx context.Context, snapshot domain.ContextSnapshot, message string) (string, error)
}

type snapshotItem struct {
	Kind       string    `json:"kind"`
	ActorID    string    `json:"actor_id"`
	ActorKind  string    `json:"actor_kind"`
	Body       string    `json:"body"`
	OccurredAt time.Time `json:"occurred_at"`
}

type completionRequest struct {
	ThreadID string         `json:"thread_id"`
	History  []snapshotItem `json:"history"`
	Message  string         `json:"message"`
}

// Client is the HTTP implementation of Completer.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	timeout  time.Duration
}

// NewClient builds an AI client from config.
func NewClient(cfg config.AIConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
		timeout:  timeout,
	}
}

// Complete calls the collaborator with one bounded timeout.
func (c *Client) Complete(ctx context.Context, snapshot domain.ContextSnapshot, message string) (string, error) {
	if c.endpoint == "" {
		return "", errors.New("ai endpoint not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	history := make([]snapshotItem, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		history = append(history, snapshotItem{
			Kind:       string(item.Kind),
			ActorID:    item.ActorID,
			ActorKind:  string(item.ActorKind),
			Body:       item.Body,
			OccurredAt: item.OccurredAt,
		})
	}

	payload, err := json.Marshal(completionRequest{
		ThreadID: snapshot.ThreadID,
		History:  history,
		Message:  message,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return "", apperrors.NewAITimeout(err)
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai collaborator status %d", resp.StatusCode)
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	return decoded.Text, nil
}
