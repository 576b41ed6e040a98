package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Register tells the provider that a token belongs to a user. Called only
// through the registration guard, never directly.
func (c *Client) Register(ctx context.Context, userID, token string) error {
	if c.endpoint == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]string{
		"user_id": userID,
		"token":   token,
	})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/registrations", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("registration status %d", resp.StatusCode)
	}
	return nil
}
