package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
)

func TestCallStampsCorrelationHeaders(t *testing.T) {
	var gotMission, gotRun string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMission = r.Header.Get("X-Mission-ID")
		gotRun = r.Header.Get("X-Run-ID")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	client := NewHubClient(srv.URL, 5*time.Second, logger.New("error", "json"))

	ctx := WithMissionID(context.Background(), "m-1")
	ctx = WithRunID(ctx, "r-1")

	result, err := client.Call(ctx, http.MethodGet, "/api/missions", nil)
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.Equal(t, "m-1", gotMission)
	assert.Equal(t, "r-1", gotRun)
	assert.Equal(t, `{"ok":true}`, result.JSON())
}

func TestComposeURL(t *testing.T) {
	assert.Equal(t, "http://x/api/y", composeURL("http://x/", "/api/y"))
	assert.Equal(t, "http://x/api/y", composeURL("http://x", "api/y"))
}

func TestRunMission(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/missions/abc/run", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("allow_self_heal"))
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"mission_id":"abc","status":"accepted","run_id":"r-9"}`))
	}))
	defer srv.Close()

	client := NewHubClient(srv.URL, 5*time.Second, logger.New("error", "json"))

	accepted, err := client.RunMission(context.Background(), "abc", true)
	require.NoError(t, err)
	assert.Equal(t, "r-9", accepted.RunID)
	assert.Equal(t, "accepted", accepted.Status)
}

func TestRunMissionRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"MISSION_NOT_FOUND"}`))
	}))
	defer srv.Close()

	client := NewHubClient(srv.URL, 5*time.Second, logger.New("error", "json"))

	_, err := client.RunMission(context.Background(), "missing", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=404")
}

func TestPostSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/signals", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"id":"sig-1"}`))
	}))
	defer srv.Close()

	client := NewSignalsClient(srv.URL, 5*time.Second, logger.New("error", "json"))

	id, err := client.PostSignal(context.Background(), SignalPayload{
		ProjectID: "p-1",
		Type:      "orchestrator_run",
		Severity:  "info",
		Status:    "pending",
		Message:   "run finished",
	})
	require.NoError(t, err)
	assert.Equal(t, "sig-1", id)
}

func TestSignalsBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewSignalsClient(srv.URL, time.Second, logger.New("error", "json"))

	payload := SignalPayload{ProjectID: "p", Type: "t", Severity: "info", Status: "pending"}
	for i := 0; i < 3; i++ {
		_, err := client.PostSignal(context.Background(), payload)
		require.Error(t, err)
	}

	// breaker is open now: the next call fails without reaching the server
	_, err := client.PostSignal(context.Background(), payload)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
}

func TestImportDangerous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/signals/import/dangerous", r.URL.Path)
		_, _ = w.Write([]byte(`{"imported":2}`))
	}))
	defer srv.Close()

	client := NewSignalsClient(srv.URL, 5*time.Second, logger.New("error", "json"))

	imported, err := client.ImportDangerous(context.Background(), ImportRequest{
		Path:      "/tmp/dangerous.jsonl",
		ProjectID: "p-1",
		MaxRows:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
}
