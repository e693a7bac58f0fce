package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/clients"
)

var (
	callEndpoint string
	callMethod   string
	callData     string
	callBaseURL  string
	callTimeout  float64
	callEngine   string
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Call a missions hub endpoint and print the response",
	Long: `Call one missions hub endpoint, print the measured outcome as
key=value lines and record the call under cli_runs/ and in the
evidence log.

Exits 1 when the hub is unreachable or answers with a 4xx/5xx status.`,
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callEndpoint, "endpoint", "/api/missions", "API endpoint path")
	callCmd.Flags().StringVar(&callMethod, "method", "GET", "HTTP method (GET or POST)")
	callCmd.Flags().StringVar(&callData, "data", "", "JSON string for the POST body")
	callCmd.Flags().StringVar(&callBaseURL, "base-url", "", "Hub base URL (default env MISSIONS_HUB_API_BASE)")
	callCmd.Flags().Float64Var(&callTimeout, "timeout", 10.0, "HTTP timeout in seconds")
	callCmd.Flags().StringVar(&callEngine, "engine", "codex", "Engine name recorded in run logs")
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	method := strings.ToUpper(callMethod)
	if method != "GET" && method != "POST" {
		return exitf(exitMisuse, "unsupported method: %s", method)
	}

	var payload any
	if callData != "" {
		if err := json.Unmarshal([]byte(callData), &payload); err != nil {
			return exitf(exitMisuse, "invalid --data payload: %v", err)
		}
	}

	env, err := newCLIEnv()
	if err != nil {
		return err
	}
	base := callBaseURL
	if base == "" {
		base = env.cfg.Clients.APIBase
	}

	runID := strconv.FormatInt(time.Now().UnixMilli(), 10)
	fmt.Fprintf(out, "cli_run_id=%s\n", runID)

	timeout := time.Duration(callTimeout * float64(time.Second))
	hub := clients.NewHubClient(base, timeout, env.log)

	result, err := hub.Call(cmd.Context(), method, callEndpoint, payload)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Request failed: %v\n", err)
		fmt.Fprintf(out, "api_up=false engine=%s run_id=%s\n", callEngine, runID)
		return exitf(exitFailure, "")
	}

	durationMS := result.Duration.Milliseconds()
	fmt.Fprintf(out, "status=%d duration_ms=%d\n", result.Status, durationMS)
	fmt.Fprintf(out, "api_up=true engine=%s run_id=%s\n", callEngine, runID)
	fmt.Fprintf(out, "workflow_run_ref=%s\n", runID)
	fmt.Fprintf(out, "workflow_run_ref logged to %s/%s.log\n", cliRunsDir, runID)

	logLine := fmt.Sprintf("run_id=%s engine=%s endpoint=%s status=%d duration_ms=%d api_up=true",
		runID, callEngine, callEndpoint, result.Status, durationMS)
	if path, err := writeCLILog(runID+".log", logLine); err == nil {
		fmt.Fprintf(out, "cli_run_log=%s\n", path)
	} else {
		env.log.Warn("failed to write cli run log", "error", err)
	}

	fmt.Fprintln(out, result.JSON())

	env.evidence.EmitCLICall(callEndpoint, method, result.Status, result.Duration, callEngine, runID, result.URL)

	if !result.OK() {
		fmt.Fprintf(out, "api_up=false engine=%s run_id=%s\n", callEngine, runID)
		return exitf(exitFailure, "")
	}
	return nil
}
