package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
)

func testSupervisor(t *testing.T) *Supervisor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests drive /bin/sh")
	}
	return New(logger.New("error", "json"), NewRegistry())
}

func TestSpawnBatchCapturesOutput(t *testing.T) {
	sup := testSupervisor(t)
	dir := t.TempDir()

	res, err := sup.SpawnBatch(context.Background(), Spec{
		Command:   []string{"/bin/sh", "-c", "echo out; echo err >&2"},
		MissionID: "m-1",
		RunID:     "run-batch",
		TraceDir:  dir,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.Failed())
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, filepath.Join(dir, "run-batch.log"), res.LogPath)

	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "# Mission ID: m-1")
	assert.Contains(t, log, "# Run ID: run-batch")
	assert.Contains(t, log, "# Command: /bin/sh -c echo out; echo err >&2")
	assert.Contains(t, log, "=== RETURN CODE ===\n0")
	assert.Contains(t, log, "=== STDOUT (4 chars) ===\nout")
	assert.Contains(t, log, "=== STDERR (4 chars) ===\nerr")
}

func TestSpawnBatchEmptyStreamPlaceholder(t *testing.T) {
	sup := testSupervisor(t)
	dir := t.TempDir()

	res, err := sup.SpawnBatch(context.Background(), Spec{
		Command:  []string{"/bin/sh", "-c", "echo only"},
		RunID:    "run-quiet",
		TraceDir: dir,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "=== STDERR (0 chars) ===\n(empty)")
}

func TestSpawnBatchNonZeroExit(t *testing.T) {
	sup := testSupervisor(t)

	res, err := sup.SpawnBatch(context.Background(), Spec{
		Command:  []string{"/bin/sh", "-c", "exit 3"},
		RunID:    "run-fail",
		TraceDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.True(t, res.Failed())
}

func TestSpawnBatchTimeoutKillsProcess(t *testing.T) {
	sup := testSupervisor(t)
	dir := t.TempDir()

	start := time.Now()
	res, err := sup.SpawnBatch(context.Background(), Spec{
		Command:  []string{"/bin/sh", "-c", "sleep 30"},
		RunID:    "run-slow",
		TraceDir: dir,
		Timeout:  200 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.True(t, res.Failed())
	assert.Less(t, time.Since(start), 10*time.Second)

	data, err := os.ReadFile(res.LogPath)
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "=== ERROR ===")
	assert.Contains(t, log, "timed out")
	assert.NotContains(t, log, "=== RETURN CODE ===")
}

func TestSpawnBatchContextCancel(t *testing.T) {
	sup := testSupervisor(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := sup.SpawnBatch(ctx, Spec{
		Command:  []string{"/bin/sh", "-c", "sleep 30"},
		RunID:    "run-cancel",
		TraceDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
}

func TestSpawnBatchCommandNotFound(t *testing.T) {
	sup := testSupervisor(t)

	_, err := sup.SpawnBatch(context.Background(), Spec{
		Command:  []string{"definitely-not-a-real-agent-binary"},
		RunID:    "run-missing",
		TraceDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeCommandNotFound))
}

func TestSpawnBatchEmptyCommand(t *testing.T) {
	sup := testSupervisor(t)

	_, err := sup.SpawnBatch(context.Background(), Spec{RunID: "run-empty", TraceDir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidPayload))
}

func TestLogPathForCommandIndex(t *testing.T) {
	idx := 2
	spec := Spec{TraceDir: "/tmp/traces", RunID: "r1", CommandIndex: &idx}
	assert.Equal(t, filepath.Join("/tmp/traces", "r1_cmd2.log"), LogPathFor(spec))

	spec.CommandIndex = nil
	assert.Equal(t, filepath.Join("/tmp/traces", "r1.log"), LogPathFor(spec))
}
