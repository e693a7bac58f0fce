package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
)

// Trace event names emitted over the lifetime of a run.
const (
	EventRunStarted   = "workflow_engine_run_started"
	EventRunCompleted = "workflow_engine_run_completed"
	EventRunFailed    = "workflow_engine_run_failed"
	EventTaskExecuted = "workflow_task_executed"
)

// Trace appends JSONL events for a single workflow run. One line per
// event: {"ts": ..., "event": ..., <payload fields>}. The trace is
// advisory; writers report errors but never abort the run over them.
type Trace struct {
	path string
	mu   sync.Mutex
}

// TracePathFor returns the trace file location for a run
func TracePathFor(traceDir, runID string) string {
	return filepath.Join(traceDir, fmt.Sprintf("workflow_run_%s.jsonl", runID))
}

// NewTrace creates a trace writer for the given file path
func NewTrace(path string) *Trace {
	return &Trace{path: path}
}

// Path returns the trace file location
func (t *Trace) Path() string {
	return t.path
}

// Emit appends one event line to the trace file
func (t *Trace) Emit(event string, payload document.Doc) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	record := document.Doc{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"event": event,
	}
	for k, v := range payload {
		record[k] = v
	}

	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode trace event: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(raw, '\n')); err != nil {
		return fmt.Errorf("failed to append trace event: %w", err)
	}
	return nil
}

// ReadTrace parses every event line from a trace file
func ReadTrace(path string) ([]document.Doc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}

	var events []document.Doc
	for _, line := range bytes.Split(raw, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var event document.Doc
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("failed to decode trace event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}
