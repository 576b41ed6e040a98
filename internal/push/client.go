// Package push speaks to the external push-delivery service. The contract
// is {tokens, title, body, data, badge} in, per-token success/failure out.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spec-kit/thread-service/internal/config"
)

// TokenResult is the provider's verdict for one token.
type TokenResult struct {
	Token string `json:"token"`
	// Status is one of "ok", "unregistered", "transient", "failed".
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

const (
	StatusOK           = "ok"
	StatusUnregistered = "unregistered"
	StatusTransient    = "transient"
	StatusFailed       = "failed"
)

// Request is one delivery batch.
type Request struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
	Badge  *int              `json:"badge,omitempty"`
}

// Sender delivers one batch and reports per-token outcomes.
type Sender interface {
	Send(ctx context.Context, req Request) ([]TokenResult, error)
}

// Client is the HTTP implementation of Sender.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient builds a push client from config.
func NewClient(cfg config.PushConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Send posts the batch to the provider.
func (c *Client) Send(ctx context.Context, req Request) ([]TokenResult, error) {
	if c.endpoint == "" {
		// No provider configured; report success so triggers drain in dev.
		results := make([]TokenResult, len(req.Tokens))
		for i, token := range req.Tokens {
			results[i] = TokenResult{Token: token, Status: StatusOK}
		}
		return results, nil
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("push provider status %d", resp.StatusCode)
	}

	var decoded struct {
		Results []TokenResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	return decoded.Results, nil
}
