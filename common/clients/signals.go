package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
)

// SignalPayload is the body of POST /api/signals
type SignalPayload struct {
	ProjectID string `json:"project_id"`
	MissionID string `json:"mission_id,omitempty"`
	Type      string `json:"type"`
	Severity  string `json:"severity"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// ImportRequest is the body of POST /api/signals/import/dangerous
type ImportRequest struct {
	Path      string `json:"path"`
	ProjectID string `json:"project_id"`
	MaxRows   int    `json:"max_rows"`
}

// SignalsClient posts signals to the hub. All posts run through a
// circuit breaker: when the signals API is down the breaker opens and
// callers fail fast instead of stalling every run on timeouts.
type SignalsClient struct {
	baseURL string
	http    *HTTPClient
	breaker *gobreaker.CircuitBreaker
	log     *logger.Logger
}

// NewSignalsClient creates a signals client with a per-request timeout
func NewSignalsClient(baseURL string, timeout time.Duration, log *logger.Logger) *SignalsClient {
	settings := gobreaker.Settings{
		Name:        "signals-api",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("signals circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &SignalsClient{
		baseURL: baseURL,
		http:    NewHTTPClient(newTimeoutClient(timeout), log),
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     log,
	}
}

// BaseURL returns the configured signals base URL
func (c *SignalsClient) BaseURL() string {
	return c.baseURL
}

// PostSignal sends one signal and returns its id
func (c *SignalsClient) PostSignal(ctx context.Context, payload SignalPayload) (string, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		status, body, err := c.http.DoJSON(ctx, http.MethodPost, composeURL(c.baseURL, "/api/signals"), payload)
		if err != nil {
			return nil, err
		}
		if status >= http.StatusBadRequest {
			return nil, fmt.Errorf("signals API rejected post: status=%d body=%s", status, string(body))
		}

		var decoded struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode signal response: %w", err)
		}
		return decoded.ID, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// ImportDangerous asks the hub to import a dangerous-command JSONL
// file and returns how many signals it created
func (c *SignalsClient) ImportDangerous(ctx context.Context, req ImportRequest) (int, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		status, body, err := c.http.DoJSON(ctx, http.MethodPost, composeURL(c.baseURL, "/api/signals/import/dangerous"), req)
		if err != nil {
			return nil, err
		}
		if status >= http.StatusBadRequest {
			return nil, fmt.Errorf("signals API rejected import: status=%d body=%s", status, string(body))
		}

		var decoded struct {
			Imported int `json:"imported"`
		}
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode import response: %w", err)
		}
		return decoded.Imported, nil
	})
	if err != nil {
		return 0, err
	}
	return result.(int), nil
}
