package engine

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
)

func TestTraceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "trace.jsonl")
	trace := NewTrace(path)

	require.NoError(t, trace.Emit(EventRunStarted, document.Doc{"run_id": "r1"}))
	require.NoError(t, trace.Emit(EventRunCompleted, document.Doc{"status": "completed"}))

	events, err := ReadTrace(path)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, EventRunStarted, events[0]["event"])
	assert.Equal(t, "r1", events[0]["run_id"])
	assert.Contains(t, events[0], "ts")

	assert.Equal(t, EventRunCompleted, events[1]["event"])
	assert.Equal(t, "completed", events[1]["status"])
}

func TestTracePathFor(t *testing.T) {
	assert.Equal(t,
		filepath.Join("logs", "workflow_run_r42.jsonl"),
		TracePathFor("logs", "r42"))
}

func TestReadTraceMissingFile(t *testing.T) {
	_, err := ReadTrace(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.Error(t, err)
}
