package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LogPathFor returns the per-run log location for a spec:
// <trace_dir>/<run_id>[_cmd<i>].log
func LogPathFor(spec Spec) string {
	suffix := ""
	if spec.CommandIndex != nil {
		suffix = fmt.Sprintf("_cmd%d", *spec.CommandIndex)
	}
	return filepath.Join(spec.TraceDir, spec.RunID+suffix+".log")
}

func prepareLog(spec Spec) (string, error) {
	if err := os.MkdirAll(spec.TraceDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create trace dir: %w", err)
	}
	return LogPathFor(spec), nil
}

// header renders the comment block that opens every trace log
func header(spec Spec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Timestamp: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "# Mission ID: %s\n", spec.MissionID)
	fmt.Fprintf(&b, "# Run ID: %s\n", spec.RunID)
	if spec.CommandIndex != nil {
		fmt.Fprintf(&b, "# Command Index: %d\n", *spec.CommandIndex)
	}
	if spec.Role != "" {
		fmt.Fprintf(&b, "# Role: %s\n", spec.Role)
	}
	fmt.Fprintf(&b, "# Command: %s\n", strings.Join(spec.Command, " "))
	return b.String()
}

// writeBatchLog writes the collect-on-exit trace for a finished run
func writeBatchLog(path string, spec Spec, result *BatchResult) {
	var b strings.Builder
	b.WriteString(header(spec))
	b.WriteString("\n")
	fmt.Fprintf(&b, "=== RETURN CODE ===\n%d\n\n", result.ExitCode)
	fmt.Fprintf(&b, "=== STDOUT (%d chars) ===\n%s\n\n", len(result.Stdout), orEmpty(result.Stdout))
	fmt.Fprintf(&b, "=== STDERR (%d chars) ===\n%s\n", len(result.Stderr), orEmpty(result.Stderr))
	// Trace logs are advisory; a failed write must not mask the result
	_ = os.WriteFile(path, []byte(b.String()), 0o644)
}

// writeErrorLog writes the trace for a run that never produced a
// return code (spawn failure, timeout kill)
func writeErrorLog(path string, spec Spec, cause error) {
	var b strings.Builder
	b.WriteString(header(spec))
	b.WriteString("\n")
	fmt.Fprintf(&b, "=== ERROR ===\n%v\n", cause)
	_ = os.WriteFile(path, []byte(b.String()), 0o644)
}

func orEmpty(s string) string {
	if s == "" {
		return "(empty)"
	}
	return strings.TrimSuffix(s, "\n")
}
