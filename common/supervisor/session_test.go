package supervisor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
)

// waitForLog polls the trace log until it contains want
func waitForLog(t *testing.T, path, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && strings.Contains(string(data), want) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("log %s never contained %q", path, want)
}

func TestStreamSessionEchoLoop(t *testing.T) {
	sup := testSupervisor(t)
	dir := t.TempDir()

	sess, err := sup.SpawnStream(context.Background(), Spec{
		Command:   []string{"/bin/sh", "-c", `printf 'ready\n'; read line; printf 'ack:%s\n' "$line"`},
		MissionID: "m-1",
		RunID:     "run-stream",
		Role:      "coder",
		TraceDir:  dir,
		Register:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "run-stream", sess.RunID())

	waitForLog(t, sess.LogPath(), "[STDOUT] ready")

	require.NoError(t, sess.SendLine("ping"))
	require.NoError(t, sess.CloseInput())

	code, err := sess.Wait(5 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.True(t, sess.Exited())

	data, err := os.ReadFile(sess.LogPath())
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "# Role: coder")
	assert.Contains(t, log, "[STDOUT] ready")
	assert.Contains(t, log, "[STDIN] ping")
	assert.Contains(t, log, "[STDOUT] ack:ping")
	assert.Contains(t, log, "[RETURN] 0")
}

func TestStreamSessionStderrLabeled(t *testing.T) {
	sup := testSupervisor(t)

	sess, err := sup.SpawnStream(context.Background(), Spec{
		Command:  []string{"/bin/sh", "-c", "echo warn >&2"},
		RunID:    "run-stderr",
		TraceDir: t.TempDir(),
	})
	require.NoError(t, err)

	_, err = sess.Wait(5 * time.Second)
	require.NoError(t, err)

	data, err := os.ReadFile(sess.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), "[STDERR] warn")
}

func TestStreamSessionWaitTimeoutThenTerminate(t *testing.T) {
	sup := testSupervisor(t)

	sess, err := sup.SpawnStream(context.Background(), Spec{
		Command:  []string{"/bin/sh", "-c", "sleep 30"},
		RunID:    "run-hang",
		TraceDir: t.TempDir(),
	})
	require.NoError(t, err)

	_, err = sess.Wait(100 * time.Millisecond)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeAgentTimeout))
	assert.False(t, sess.Exited())

	// No RETURN until the session is actually closed out
	data, err := os.ReadFile(sess.LogPath())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "[RETURN]")

	code, err := sess.Terminate(2 * time.Second)
	require.NoError(t, err)
	assert.NotEqual(t, 0, code)
	assert.True(t, sess.Exited())

	data, err = os.ReadFile(sess.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), fmt.Sprintf("[RETURN] %d", code))
}

func TestStreamSessionRegistry(t *testing.T) {
	sup := testSupervisor(t)

	sess, err := sup.SpawnStream(context.Background(), Spec{
		Command:   []string{"/bin/sh", "-c", "read line"},
		MissionID: "m-2",
		RunID:     "run-reg",
		Role:      "tester",
		TraceDir:  t.TempDir(),
		Register:  true,
	})
	require.NoError(t, err)

	meta, err := sup.Registry().Lookup("run-reg")
	require.NoError(t, err)
	assert.Same(t, sess, meta.Session)
	assert.Equal(t, "tester", meta.Role)
	assert.Equal(t, "m-2", meta.MissionID)
	assert.Contains(t, sup.Registry().RunIDs(), "run-reg")

	_, err = sess.Terminate(time.Second)
	require.NoError(t, err)

	sup.Registry().Deregister("run-reg")
	_, err = sup.Registry().Lookup("run-reg")
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeSessionNotFound))
}

func TestStreamSpawnCommandNotFound(t *testing.T) {
	sup := testSupervisor(t)

	_, err := sup.SpawnStream(context.Background(), Spec{
		Command:  []string{"definitely-not-a-real-agent-binary"},
		RunID:    "run-nope",
		TraceDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeCommandNotFound))
}
