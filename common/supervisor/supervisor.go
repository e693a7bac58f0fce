// Package supervisor spawns and supervises agent CLI subprocesses.
// Batch mode collects stdout/stderr and writes a single trace log on
// exit; stream mode pipes stdio line-by-line into the same log format
// and stays attachable until the process exits. Every child runs in
// its own process group so cancellation kills the whole tree.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
)

// Logger is the narrow logging interface the supervisor needs
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
}

// Spec describes one agent CLI invocation
type Spec struct {
	// Argv; Command[0] is the executable
	Command []string

	MissionID string
	RunID     string

	// Directory for the per-run trace log
	TraceDir string

	// Wall-clock budget; zero means no timeout
	Timeout time.Duration

	// Distinguishes multiple commands within one run; the log becomes
	// <run_id>_cmd<i>.log when set
	CommandIndex *int

	Role    string
	Workdir string

	// Register the stream session in the supervisor's registry
	Register bool
}

// BatchResult is the outcome of a batch spawn
type BatchResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	LogPath  string
}

// Failed reports whether the run must count as a role failure
func (r *BatchResult) Failed() bool {
	return r.TimedOut || r.ExitCode != 0
}

// Supervisor spawns agent CLIs
type Supervisor struct {
	logger   Logger
	registry *Registry
}

// New creates a supervisor. The registry may be nil when no stream
// sessions will be attached to.
func New(logger Logger, registry *Registry) *Supervisor {
	return &Supervisor{logger: logger, registry: registry}
}

// Registry returns the stream registry, nil when not configured
func (s *Supervisor) Registry() *Registry {
	return s.registry
}

// SpawnBatch runs the command to completion with captured stdio and
// writes the trace log. A timeout kills the process group and is
// reported through BatchResult.TimedOut, not an error; errors mean
// the process could not be started at all.
func (s *Supervisor) SpawnBatch(ctx context.Context, spec Spec) (*BatchResult, error) {
	if len(spec.Command) == 0 {
		return nil, apperr.Validation(apperr.CodeInvalidPayload, "empty command")
	}

	logPath, err := prepareLog(spec)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Workdir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	setProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		writeErrorLog(logPath, spec, err)
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, apperr.Wrap(apperr.KindValidation, apperr.CodeCommandNotFound,
				fmt.Sprintf("executable not found: %s", spec.Command[0]), err)
		}
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var timeoutCh <-chan time.Time
	if spec.Timeout > 0 {
		timer := time.NewTimer(spec.Timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	result := &BatchResult{LogPath: logPath}

	select {
	case waitErr := <-done:
		result.ExitCode = exitCode(cmd, waitErr)
	case <-timeoutCh:
		s.logger.Warn("agent timed out, killing process group",
			"run_id", spec.RunID, "timeout", spec.Timeout.String())
		killGroup(cmd)
		<-done
		result.TimedOut = true
		result.ExitCode = -1
	case <-ctx.Done():
		s.logger.Warn("agent cancelled, killing process group", "run_id", spec.RunID)
		killGroup(cmd)
		<-done
		result.TimedOut = true
		result.ExitCode = -1
	}

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	if result.TimedOut {
		writeErrorLog(logPath, spec, fmt.Errorf("command timed out after %s", spec.Timeout))
	} else {
		writeBatchLog(logPath, spec, result)
	}

	s.logger.Debug("batch spawn finished",
		"run_id", spec.RunID, "exit_code", result.ExitCode, "timed_out", result.TimedOut)
	return result, nil
}

// exitCode extracts the child's exit status from Wait's error
func exitCode(cmd *exec.Cmd, waitErr error) int {
	if waitErr == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
