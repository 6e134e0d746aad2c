package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/permissions/pkg/observability"
	"github.com/platinummonkey/permissions/pkg/presence"
	"github.com/platinummonkey/permissions/pkg/resync"
)

// Client talks to the daemon's admin HTTP API
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient creates a client for the daemon at baseURL
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Rcon runs a raw command and returns the reply text
func (c *Client) Rcon(ctx context.Context, command string) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/rcon", strings.NewReader(command))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read reply: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rcon failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

// Sessions lists connected players
func (c *Client) Sessions(ctx context.Context) ([]presence.Session, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/sessions", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to list sessions: %s", resp.Status)
	}

	var sessions []presence.Session
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

// Resync runs a database resync on the daemon and returns the new status
func (c *Client) Resync(ctx context.Context) (resync.Status, error) {
	var status resync.Status

	resp, err := c.do(ctx, http.MethodPost, "/v1/resync", nil)
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&apiErr)
		return status, fmt.Errorf("resync failed: %s: %s", resp.Status, apiErr.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("failed to decode resync status: %w", err)
	}
	return status, nil
}

// Health returns the readiness report. A 503 report is returned along with an error.
func (c *Client) Health(ctx context.Context) (observability.HealthStatus, error) {
	var status observability.HealthStatus

	resp, err := c.do(ctx, http.MethodGet, "/health/ready", nil)
	if err != nil {
		return status, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("failed to decode health: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return status, fmt.Errorf("daemon not ready: %s", status.Status)
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "text/plain")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach daemon: %w", err)
	}
	return resp, nil
}
