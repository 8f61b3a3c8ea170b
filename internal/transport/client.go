// Package transport provides the HTTP client for the budget server.
//
// It implements the two reconciliation calls (fetch-latest, push-update)
// plus the account endpoints and the health probe. Server absence of a
// record is reported as (nil, nil), never as an error, so the sync
// engine can tell an empty account apart from an outage.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anshumat/budgetbox/internal/budget"
	syncpkg "github.com/anshumat/budgetbox/internal/sync"
)

// Client talks to the budget server over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the server at baseURL.
//
// Example:
//
//	client := transport.NewClient("http://localhost:4000")
//	remote, err := client.FetchLatest(ctx, "me@example.org")
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// latestResponse mirrors the server's /budget/latest envelope.
type latestResponse struct {
	Success   bool            `json:"success"`
	Budget    *budget.Amounts `json:"budget"`
	Timestamp *int64          `json:"timestamp"`
}

// syncResponse mirrors the server's /budget/sync envelope.
type syncResponse struct {
	Success   bool  `json:"success"`
	Timestamp int64 `json:"timestamp"`
}

// accountResponse mirrors the server's /register and /login envelopes.
type accountResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Email   string `json:"email,omitempty"`
	Token   string `json:"token,omitempty"`
}

// FetchLatest implements sync.Transport.FetchLatest.
//
// Returns (nil, nil) when the identity has never synced. Any transport
// or server error is returned as an error so the caller never mistakes
// an outage for an empty account.
func (c *Client) FetchLatest(ctx context.Context, identity string) (*syncpkg.Remote, error) {
	u := fmt.Sprintf("%s/budget/latest?email=%s", c.baseURL, url.QueryEscape(identity))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build fetch request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch latest failed: server returned %s", resp.Status)
	}

	var out latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode latest response: %w", err)
	}

	// Explicit "no record" result.
	if out.Budget == nil || out.Timestamp == nil {
		return nil, nil
	}

	return &syncpkg.Remote{
		Amounts:   *out.Budget,
		Timestamp: *out.Timestamp,
	}, nil
}

// PushUpdate implements sync.Transport.PushUpdate.
//
// The returned timestamp is the write time the server assigned to the
// new row, in milliseconds since epoch.
func (c *Client) PushUpdate(ctx context.Context, identity string, amounts budget.Amounts) (int64, error) {
	body, err := json.Marshal(map[string]any{
		"email":  identity,
		"budget": amounts,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/budget/sync", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("push update failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("push update failed: server returned %s", resp.Status)
	}

	var out syncResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode sync response: %w", err)
	}
	if !out.Success {
		return 0, fmt.Errorf("push update rejected by server")
	}

	return out.Timestamp, nil
}

// Register creates an account on the server.
//
// Returns (false, nil) with the server's message when the identity is
// already taken; an error only for transport failures.
func (c *Client) Register(ctx context.Context, identity, secret string) (bool, string, error) {
	out, err := c.postAccount(ctx, "/register", identity, secret)
	if err != nil {
		return false, "", err
	}
	return out.Success, out.Message, nil
}

// Login validates credentials and returns the session token.
func (c *Client) Login(ctx context.Context, identity, secret string) (string, error) {
	out, err := c.postAccount(ctx, "/login", identity, secret)
	if err != nil {
		return "", err
	}
	if !out.Success {
		return "", fmt.Errorf("login failed: %s", out.Message)
	}
	return out.Token, nil
}

func (c *Client) postAccount(ctx context.Context, path, identity, secret string) (*accountResponse, error) {
	body, err := json.Marshal(map[string]string{
		"email":    identity,
		"password": secret,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal account payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build account request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("account request failed: %w", err)
	}
	defer resp.Body.Close()

	var out accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode account response: %w", err)
	}
	return &out, nil
}

// Health probes the server's /health endpoint. Used by the connectivity
// monitor; a nil error means the server is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe failed: server returned %s", resp.Status)
	}
	return nil
}
