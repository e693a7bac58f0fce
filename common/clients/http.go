// Package clients holds the HTTP clients the CLI uses to talk to the
// hub and the signals API. Request metadata (mission, run) travels in
// context and is stamped onto headers so hub logs can correlate CLI
// calls with runs.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
)

// HTTPClient wraps http.Client with context-aware helpers
type HTTPClient struct {
	client *http.Client
	log    *logger.Logger
}

// NewHTTPClient creates a new HTTP client wrapper
func NewHTTPClient(client *http.Client, log *logger.Logger) *HTTPClient {
	return &HTTPClient{
		client: client,
		log:    log,
	}
}

// DoRequest creates and executes a request, stamping correlation
// headers extracted from the context
func (c *HTTPClient) DoRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	if missionID, ok := GetMissionID(ctx); ok {
		req.Header.Set("X-Mission-ID", missionID)
	}
	if runID, ok := GetRunID(ctx); ok {
		req.Header.Set("X-Run-ID", runID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}

// DoJSON marshals payload (when non-nil), executes the request and
// returns status plus the full response body
func (c *HTTPClient) DoJSON(ctx context.Context, method, url string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	resp, err := c.DoRequest(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, data, nil
}

// composeURL joins a base URL and an endpoint path regardless of
// which side carries the slash
func composeURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// newTimeoutClient is the shared constructor for per-API clients
func newTimeoutClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
