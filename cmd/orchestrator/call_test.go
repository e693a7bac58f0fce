package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallMisuseExitCodes(t *testing.T) {
	chdirTemp(t)

	_, stderr, code := executeCLI(t, "call", "--method", "DELETE")
	assert.Equal(t, exitMisuse, code)
	assert.Contains(t, stderr, "unsupported method: DELETE")

	_, stderr, code = executeCLI(t, "call", "--method", "POST", "--data", "{not json")
	assert.Equal(t, exitMisuse, code)
	assert.Contains(t, stderr, "invalid --data payload")
}

func TestCallGetAgainstHub(t *testing.T) {
	dir := chdirTemp(t)
	evidencePath := touchEvidence(t)

	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"missions": []}`)
	}))
	defer srv.Close()

	stdout, stderr, code := executeCLI(t,
		"call", "--endpoint", "/api/missions", "--base-url", srv.URL)
	require.Equal(t, exitOK, code, "stdout=%s stderr=%s", stdout, stderr)
	assert.Equal(t, "/api/missions", gotPath)
	assert.Equal(t, http.MethodGet, gotMethod)

	assert.Contains(t, stdout, "cli_run_id=")
	assert.Contains(t, stdout, "status=200")
	assert.Regexp(t, `api_up=true engine=codex run_id=\d+`, stdout)
	assert.Contains(t, stdout, "workflow_run_ref=")
	assert.Contains(t, stdout, "cli_run_log=cli_runs/")
	assert.Contains(t, stdout, `{"missions":[]}`)
	assert.NotContains(t, stdout, "api_up=false")

	logs, err := filepath.Glob(filepath.Join(dir, cliRunsDir, "*.log"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	content, err := os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "engine=codex endpoint=/api/missions status=200")
	assert.Contains(t, string(content), "api_up=true")

	evidence, err := os.ReadFile(evidencePath)
	require.NoError(t, err)
	assert.Contains(t, string(evidence), `"event":"cli_call"`)
	assert.Contains(t, string(evidence), `"endpoint":"/api/missions"`)
}

func TestCallPostSendsPayload(t *testing.T) {
	chdirTemp(t)

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"abc"}`)
	}))
	defer srv.Close()

	stdout, _, code := executeCLI(t,
		"call",
		"--endpoint", "/api/missions",
		"--method", "post",
		"--data", `{"project_slug":"demo","title":"Ship it"}`,
		"--base-url", srv.URL)
	require.Equal(t, exitOK, code)
	assert.Equal(t, "demo", gotBody["project_slug"])
	assert.Equal(t, "Ship it", gotBody["title"])
	assert.Contains(t, stdout, "status=201")
}

func TestCallErrorStatusExitsFailure(t *testing.T) {
	chdirTemp(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"detail":"MISSION_NOT_FOUND"}`)
	}))
	defer srv.Close()

	stdout, _, code := executeCLI(t,
		"call", "--endpoint", "/api/missions/zzz", "--base-url", srv.URL)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stdout, "status=404")
	assert.Contains(t, stdout, "MISSION_NOT_FOUND")

	// the closing verdict line flips to down
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	assert.Contains(t, lines[len(lines)-1], "api_up=false")
}

func TestCallUnreachableHubExitsFailure(t *testing.T) {
	chdirTemp(t)

	stdout, stderr, code := executeCLI(t,
		"call", "--base-url", "http://127.0.0.1:1")
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "Request failed:")
	assert.Contains(t, stdout, "api_up=false")
	assert.NotContains(t, stdout, "status=")
}
