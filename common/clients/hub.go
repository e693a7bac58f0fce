package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
)

// HubClient talks to the missions hub API
type HubClient struct {
	baseURL string
	http    *HTTPClient
	log     *logger.Logger
}

// NewHubClient creates a hub client with a per-request timeout
func NewHubClient(baseURL string, timeout time.Duration, log *logger.Logger) *HubClient {
	return &HubClient{
		baseURL: baseURL,
		http:    NewHTTPClient(newTimeoutClient(timeout), log),
		log:     log,
	}
}

// BaseURL returns the configured hub base URL
func (c *HubClient) BaseURL() string {
	return c.baseURL
}

// CallResult is the raw outcome of a generic API call
type CallResult struct {
	Status   int
	Body     []byte
	Duration time.Duration
	URL      string
}

// OK reports whether the call ended in a 2xx/3xx status
func (r *CallResult) OK() bool {
	return r.Status < http.StatusBadRequest
}

// JSON re-encodes the response body compactly when it is valid JSON;
// otherwise it returns the body as-is
func (r *CallResult) JSON() string {
	var decoded any
	if err := json.Unmarshal(r.Body, &decoded); err != nil {
		return string(r.Body)
	}
	compact, err := json.Marshal(decoded)
	if err != nil {
		return string(r.Body)
	}
	return string(compact)
}

// Call executes one arbitrary API call against the hub and measures it
func (c *HubClient) Call(ctx context.Context, method, endpoint string, payload any) (*CallResult, error) {
	url := composeURL(c.baseURL, endpoint)
	started := time.Now()

	status, body, err := c.http.DoJSON(ctx, method, url, payload)
	duration := time.Since(started)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s %s: %w", method, endpoint, err)
	}

	return &CallResult{Status: status, Body: body, Duration: duration, URL: url}, nil
}

// RunAccepted is the hub's response to a mission run request
type RunAccepted struct {
	MissionID string `json:"mission_id"`
	Status    string `json:"status"`
	RunID     string `json:"run_id"`
}

// RunMission asks the hub to execute a mission's workflow. The hub
// answers 202 with the accepted run reference.
func (c *HubClient) RunMission(ctx context.Context, missionID string, allowSelfHeal bool) (*RunAccepted, error) {
	endpoint := fmt.Sprintf("/missions/%s/run?allow_self_heal=%t", missionID, allowSelfHeal)

	status, body, err := c.http.DoJSON(ctx, http.MethodPost, composeURL(c.baseURL, endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to request mission run: %w", err)
	}
	if status != http.StatusAccepted {
		return nil, fmt.Errorf("mission run rejected: status=%d body=%s", status, string(body))
	}

	var accepted RunAccepted
	if err := json.Unmarshal(body, &accepted); err != nil {
		return nil, fmt.Errorf("failed to decode run response: %w", err)
	}
	return &accepted, nil
}

// Health probes /health and returns the HTTP status code
func (c *HubClient) Health(ctx context.Context) (int, error) {
	status, _, err := c.http.DoJSON(ctx, http.MethodGet, composeURL(c.baseURL, "/health"), nil)
	if err != nil {
		return 0, err
	}
	return status, nil
}

// NotifyWorkflow posts a run summary to an arbitrary hub endpoint,
// best-effort. Used by the CLI run command's --workflow-endpoint hook.
func (c *HubClient) NotifyWorkflow(ctx context.Context, endpoint, missionID, runID string, roles []string) error {
	payload := map[string]any{
		"mission_id": missionID,
		"run_id":     runID,
		"roles":      roles,
	}
	status, body, err := c.http.DoJSON(ctx, http.MethodPost, composeURL(c.baseURL, endpoint), payload)
	if err != nil {
		return fmt.Errorf("failed to notify workflow endpoint: %w", err)
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("workflow endpoint rejected notification: status=%d body=%s", status, string(body))
	}
	return nil
}
