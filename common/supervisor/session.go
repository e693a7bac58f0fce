package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
)

// Session is a live stream-mode subprocess. Two pump goroutines copy
// stdout/stderr into the trace log; SendLine feeds stdin. The session
// stays valid after exit for reading the final state.
type Session struct {
	spec    Spec
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	logPath string

	logMu sync.Mutex

	pumps sync.WaitGroup
	done  chan struct{}

	mu       sync.Mutex
	exited   bool
	exitCode int
}

// SpawnStream launches the command with piped stdio and starts the
// log pumps. The caller owns the session until Wait or Terminate.
func (s *Supervisor) SpawnStream(ctx context.Context, spec Spec) (*Session, error) {
	if len(spec.Command) == 0 {
		return nil, apperr.Validation(apperr.CodeInvalidPayload, "empty command")
	}

	logPath, err := prepareLog(spec)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(logPath, []byte(header(spec)), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write trace header: %w", err)
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Workdir
	setProcAttr(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			writeErrorLog(logPath, spec, err)
			return nil, apperr.Wrap(apperr.KindValidation, apperr.CodeCommandNotFound,
				fmt.Sprintf("executable not found: %s", spec.Command[0]), err)
		}
		return nil, fmt.Errorf("failed to start command: %w", err)
	}

	sess := &Session{
		spec:    spec,
		cmd:     cmd,
		stdin:   stdin,
		logPath: logPath,
		done:    make(chan struct{}),
	}

	sess.pumps.Add(2)
	go sess.pump(stdout, "STDOUT")
	go sess.pump(stderr, "STDERR")

	// Reap in the background: Wait closes the pipes, so the pumps
	// must drain first
	go func() {
		sess.pumps.Wait()
		waitErr := cmd.Wait()
		sess.mu.Lock()
		sess.exited = true
		sess.exitCode = exitCode(cmd, waitErr)
		sess.mu.Unlock()
		close(sess.done)
	}()

	if spec.Register && s.registry != nil {
		s.registry.Register(spec.RunID, sess, spec.Role, spec.MissionID)
	}

	s.logger.Info("stream session started",
		"run_id", spec.RunID, "role", spec.Role, "log", logPath)
	return sess, nil
}

// pump copies one stream into the trace log line by line
func (sess *Session) pump(r io.Reader, label string) {
	defer sess.pumps.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		sess.appendLine(label, scanner.Text())
	}
}

// appendLine appends one labeled entry to the trace log
func (sess *Session) appendLine(label, content string) {
	sess.logMu.Lock()
	defer sess.logMu.Unlock()
	f, err := os.OpenFile(sess.logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "[%s] %s\n", label, content)
}

// LogPath returns the session's trace log location
func (sess *Session) LogPath() string {
	return sess.logPath
}

// RunID returns the run this session belongs to
func (sess *Session) RunID() string {
	return sess.spec.RunID
}

// SendLine writes one line to the child's stdin and records it
func (sess *Session) SendLine(text string) error {
	if _, err := io.WriteString(sess.stdin, text+"\n"); err != nil {
		return fmt.Errorf("failed to write to session stdin: %w", err)
	}
	sess.appendLine("STDIN", text)
	return nil
}

// CloseInput closes the child's stdin, signalling EOF
func (sess *Session) CloseInput() error {
	return sess.stdin.Close()
}

// Wait blocks until the process exits or the timeout elapses. On exit
// it appends the RETURN line and returns the exit code; on timeout it
// returns a transient error and records nothing (Terminate does).
func (sess *Session) Wait(timeout time.Duration) (int, error) {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case <-sess.done:
		code := sess.currentExitCode()
		sess.appendLine("RETURN", fmt.Sprintf("%d", code))
		return code, nil
	case <-timeoutCh:
		return -1, apperr.Transient(apperr.CodeAgentTimeout,
			fmt.Sprintf("session did not exit within %s", timeout), nil)
	}
}

// Terminate closes stdin, signals the process group, waits up to
// grace, then kills. The RETURN line is always recorded.
func (sess *Session) Terminate(grace time.Duration) (int, error) {
	_ = sess.stdin.Close()
	_ = terminateGroup(sess.cmd)

	if grace <= 0 {
		grace = 5 * time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-sess.done:
	case <-timer.C:
		_ = killGroup(sess.cmd)
		<-sess.done
	}

	code := sess.currentExitCode()
	sess.appendLine("RETURN", fmt.Sprintf("%d", code))
	return code, nil
}

// Exited reports whether the process has been reaped
func (sess *Session) Exited() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.exited
}

func (sess *Session) currentExitCode() int {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.exitCode
}
