package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/audit"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/bus"
)

func writeEngines(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engines.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("ENGINES_CONFIG", path)
}

func findRunDir(t *testing.T, traceDir string) string {
	t.Helper()
	entries, err := os.ReadDir(traceDir)
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() {
			return filepath.Join(traceDir, e.Name())
		}
	}
	t.Fatalf("no run directory under %s", traceDir)
	return ""
}

func TestRunMisuseExitCodes(t *testing.T) {
	chdirTemp(t)

	_, stderr, code := executeCLI(t, "run", "--roles", " , ")
	assert.Equal(t, exitMisuse, code)
	assert.Contains(t, stderr, "roles is empty")

	_, stderr, code = executeCLI(t, "run", "--roles", "a,b", "--chat-mode")
	assert.Equal(t, exitMisuse, code)
	assert.Contains(t, stderr, "chat-mode runs exactly one role")

	_, stderr, code = executeCLI(t, "run", "--roles", "a", "--chat-mode", "--parallel")
	assert.Equal(t, exitMisuse, code)
	assert.Contains(t, stderr, "chat-mode cannot run in parallel")

	_, stderr, code = executeCLI(t, "run", "--roles", "a", "--mission", "not-a-uuid")
	assert.Equal(t, exitMisuse, code)
	assert.Contains(t, stderr, "mission is not a UUID")
}

func TestRunSequentialMockEngine(t *testing.T) {
	dir := chdirTemp(t)

	var mu sync.Mutex
	var signalPosts []map[string]any
	signalsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		mu.Lock()
		signalPosts = append(signalPosts, body)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"sig-1","status":"pending"}`)
	}))
	defer signalsSrv.Close()

	var workflowPath string
	var workflowBody map[string]any
	var workflowMissionHeader, workflowRunHeader string
	hubSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		workflowPath = r.URL.Path
		workflowMissionHeader = r.Header.Get("X-Mission-ID")
		workflowRunHeader = r.Header.Get("X-Run-ID")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&workflowBody))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		fmt.Fprint(w, `{}`)
	}))
	defer hubSrv.Close()
	t.Setenv("MISSIONS_HUB_API_BASE", hubSrv.URL)

	traceDir := filepath.Join(dir, "trace")
	busDir := filepath.Join(dir, "bus")

	stdout, stderr, code := executeCLI(t,
		"run",
		"--roles", "planner,coder",
		"--engine", "mock",
		"--trace-dir", traceDir,
		"--message-bus-path", busDir,
		"--signals-project-id", "demo",
		"--signals-base-url", signalsSrv.URL,
		"--workflow-endpoint", "/workflow/accept",
	)
	require.Equal(t, exitOK, code, "stdout=%s stderr=%s", stdout, stderr)
	assert.Contains(t, stdout, "signals_posted id=sig-1 status=pending")

	// one run directory holding the plan and the finalized reports
	runDir := findRunDir(t, traceDir)
	plan := readJSONFile(t, filepath.Join(runDir, "plan.json"))
	assert.Equal(t, "pending", plan["status"])
	assert.Equal(t, []any{"planner", "coder"}, plan["roles"])
	report := readJSONFile(t, filepath.Join(runDir, "test_report.json"))
	assert.Equal(t, "ok", report["status"])
	auditReport := readJSONFile(t, filepath.Join(runDir, "audit.json"))
	assert.Equal(t, "ok", auditReport["status"])

	// one agent trace log per role
	logs, err := filepath.Glob(filepath.Join(traceDir, "*_cmd*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	// handoffs landed in both mailboxes
	for _, role := range []string{"planner", "coder"} {
		msgs := bus.Read(filepath.Join(busDir, role+".json"))
		require.Len(t, msgs, 1, "mailbox for %s", role)
		assert.Equal(t, "completed", msgs[0].String("status"))
		assert.Equal(t, role, msgs[0].String("role"))
	}

	// PLAN then TEST/PATCH/APPLY on the audit chain, and it verifies
	auditDir := filepath.Join(dir, "data", "logs", "current", "audit")
	manifest, err := os.ReadFile(filepath.Join(auditDir, "manifest.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(manifest)), "\n")
	require.Len(t, lines, 4)
	var first audit.Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, audit.EventPlan, first.Event)
	assert.Equal(t, "WORK", first.Actor)
	assert.Equal(t, []string{"WORK_rules"}, first.RuleIDs)
	assert.Equal(t, []string{"project_rules"}, first.PolicyRefs)
	var last audit.Record
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &last))
	assert.Equal(t, audit.EventApply, last.Event)
	assert.NoError(t, audit.NewChain(auditDir).Verify())

	// manual automation level means the run is gated: a warning signal
	// first, then the finished-run signal
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, signalPosts, 2)
	assert.Equal(t, "dangerous_command", signalPosts[0]["type"])
	assert.Equal(t, "warning", signalPosts[0]["severity"])
	assert.Equal(t, "orchestrator_run", signalPosts[1]["type"])
	assert.Equal(t, "demo", signalPosts[1]["project_id"])
	missionField, ok := signalPosts[1]["mission_id"].(string)
	require.True(t, ok)
	assert.Len(t, missionField, 32)
	assert.NotContains(t, missionField, "-")

	// the hub heard about the finished run, with correlation headers
	assert.Equal(t, "/workflow/accept", workflowPath)
	assert.Equal(t, []any{"planner", "coder"}, workflowBody["roles"])
	assert.NotEmpty(t, workflowBody["run_id"])
	assert.NotEmpty(t, workflowBody["mission_id"])
	assert.Equal(t, workflowBody["mission_id"], workflowMissionHeader)
	assert.Equal(t, workflowBody["run_id"], workflowRunHeader)
}

func TestRunStopsAtFirstFailedRole(t *testing.T) {
	dir := chdirTemp(t)
	writeEngines(t, `engines:
  failing:
    command: ["false"]
`)

	traceDir := filepath.Join(dir, "trace")
	busDir := filepath.Join(dir, "bus")

	stdout, stderr, code := executeCLI(t,
		"run",
		"--roles", "planner,coder",
		"--engine", "failing",
		"--trace-dir", traceDir,
		"--message-bus-path", busDir,
	)
	require.Equal(t, exitFailure, code, "stdout=%s", stdout)
	assert.Contains(t, stderr, "role planner failed")

	// the failing role is handed off, the rest never start
	msgs := bus.Read(filepath.Join(busDir, "planner.json"))
	require.Len(t, msgs, 1)
	assert.Equal(t, "failed", msgs[0].String("status"))
	assert.Empty(t, bus.Read(filepath.Join(busDir, "coder.json")))

	report := readJSONFile(t, filepath.Join(findRunDir(t, traceDir), "test_report.json"))
	assert.Equal(t, "failed", report["status"])
}

func TestRunTimeoutExitsWithTimeoutCode(t *testing.T) {
	dir := chdirTemp(t)
	writeEngines(t, `engines:
  sleeper:
    command: ["sleep", "5"]
`)

	stdout, stderr, code := executeCLI(t,
		"run",
		"--roles", "planner",
		"--engine", "sleeper",
		"--timeout", "150ms",
		"--trace-dir", filepath.Join(dir, "trace"),
		"--message-bus-path", filepath.Join(dir, "bus"),
	)
	require.Equal(t, exitTimeout, code, "stdout=%s stderr=%s", stdout, stderr)
	assert.Contains(t, stderr, "timed out")

	msgs := bus.Read(filepath.Join(dir, "bus", "planner.json"))
	require.Len(t, msgs, 1)
	assert.Equal(t, "failed", msgs[0].String("status"))
}

func TestRunParallelRunsRolesConcurrently(t *testing.T) {
	dir := chdirTemp(t)
	writeEngines(t, `engines:
  slow:
    command: ["sleep", "0.4"]
`)

	started := time.Now()
	stdout, stderr, code := executeCLI(t,
		"run", "--roles", "alpha,beta", "--engine", "slow",
		"--trace-dir", filepath.Join(dir, "trace-seq"),
		"--message-bus-path", filepath.Join(dir, "bus-seq"))
	require.Equal(t, exitOK, code, "stdout=%s stderr=%s", stdout, stderr)
	sequential := time.Since(started)

	busPar := filepath.Join(dir, "bus-par")
	started = time.Now()
	stdout, stderr, code = executeCLI(t,
		"run", "--roles", "alpha,beta", "--engine", "slow", "--parallel",
		"--trace-dir", filepath.Join(dir, "trace-par"),
		"--message-bus-path", busPar)
	require.Equal(t, exitOK, code, "stdout=%s stderr=%s", stdout, stderr)
	parallel := time.Since(started)

	assert.Less(t, parallel, sequential*8/10,
		"parallel run should beat sequential: parallel=%s sequential=%s", parallel, sequential)

	for _, role := range []string{"alpha", "beta"} {
		msgs := bus.Read(filepath.Join(busPar, role+".json"))
		require.Len(t, msgs, 1, "mailbox for %s", role)
		assert.Equal(t, "completed", msgs[0].String("status"))
	}
}

func TestRunParallelReportsEveryFailedRole(t *testing.T) {
	dir := chdirTemp(t)
	writeEngines(t, `engines:
  failing:
    command: ["false"]
`)

	busDir := filepath.Join(dir, "bus")
	_, stderr, code := executeCLI(t,
		"run", "--roles", "alpha,beta", "--engine", "failing", "--parallel",
		"--trace-dir", filepath.Join(dir, "trace"),
		"--message-bus-path", busDir)
	require.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "roles failed: alpha,beta")

	// unlike the sequential path, every role ran and recorded a handoff
	for _, role := range []string{"alpha", "beta"} {
		msgs := bus.Read(filepath.Join(busDir, role+".json"))
		require.Len(t, msgs, 1, "mailbox for %s", role)
		assert.Equal(t, "failed", msgs[0].String("status"))
	}
}

func TestRunChatModeCompletesSession(t *testing.T) {
	dir := chdirTemp(t)
	evidencePath := touchEvidence(t)

	traceDir := filepath.Join(dir, "trace")
	stdout, stderr, code := executeCLI(t,
		"run",
		"--roles", "navigator",
		"--engine", "mock",
		"--chat-mode",
		"--trace-dir", traceDir,
		"--message-bus-path", filepath.Join(dir, "bus"),
	)
	require.Equal(t, exitOK, code, "stdout=%s stderr=%s", stdout, stderr)
	assert.Contains(t, stdout, "chat_run_id=")
	assert.Contains(t, stdout, "cli_run_log="+traceDir)

	msgs := bus.Read(filepath.Join(dir, "bus", "navigator.json"))
	require.Len(t, msgs, 1)
	assert.Equal(t, "completed", msgs[0].String("status"))

	report := readJSONFile(t, filepath.Join(findRunDir(t, traceDir), "test_report.json"))
	assert.Equal(t, "ok", report["status"])

	evidence, err := os.ReadFile(evidencePath)
	require.NoError(t, err)
	assert.Contains(t, string(evidence), `"event":"orchestrator_chat_run"`)
	assert.Contains(t, string(evidence), `"status":"ok"`)

	// the session is gone from the attach registry once the run ends
	assert.Empty(t, streamRegistry.RunIDs())
}
