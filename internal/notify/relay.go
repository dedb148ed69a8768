package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPRelay posts notifications as JSON to a mail relay endpoint.
type HTTPRelay struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPRelay returns a relay for url. token, when set, is sent as a
// bearer token.
func NewHTTPRelay(url, token string, client *http.Client) *HTTPRelay {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPRelay{url: url, token: token, client: client}
}

type relayPayload struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Kind     string `json:"kind,omitempty"`
	Link     string `json:"link,omitempty"`
}

// Send posts n once. Any non-2xx answer is an error.
func (r *HTTPRelay) Send(ctx context.Context, n Notification, idempotencyKey string) error {
	body, err := json.Marshal(relayPayload{
		Email:    n.Email,
		FullName: n.FullName,
		Kind:     n.Kind,
		Link:     n.Link,
	})
	if err != nil {
		return fmt.Errorf("notify: encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: calling relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: relay returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}
