package engine

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/supervisor"
)

func newSupervisorDispatcher(t *testing.T, f *fixture, script string) *SupervisorDispatcher {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("dispatcher tests rely on /bin/sh")
	}
	return &SupervisorDispatcher{
		Supervisor: supervisor.New(logger.New("error", "json"), supervisor.NewRegistry()),
		Agents:     f.store.Agents,
		Resolve: func(agent *models.Agent) ([]string, string, error) {
			return []string{"/bin/sh", "-c", script}, "", nil
		},
		TraceDir: t.TempDir(),
		Timeout:  10 * time.Second,
	}
}

func TestSupervisorDispatcherRunsAgentCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	group := f.addGroup(t, "Build", 0)
	task := f.addTask(t, group, "Say hi", 0)

	dispatcher := newSupervisorDispatcher(t, f, "echo hi")
	eng := f.engine(t, dispatcher, Options{Strategy: StrategyPlain, SuppressSummaryArtifact: true})

	status, err := eng.Run(ctx, f.mission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, status)

	row, err := f.store.Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, row.Status)
	assert.Equal(t, "ok", row.Output["result"])
	assert.Equal(t, "hi", row.Output["stdout"])
	assert.NotEmpty(t, row.Output["log_path"])
}

func TestSupervisorDispatcherFailureFailsTask(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	group := f.addGroup(t, "Build", 0)
	task := f.addTask(t, group, "Blow up", 0)

	dispatcher := newSupervisorDispatcher(t, f, "echo boom >&2; exit 3")
	eng := f.engine(t, dispatcher, Options{Strategy: StrategyPlain})

	status, err := eng.Run(ctx, f.mission.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, status)

	row, err := f.store.Tasks.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, row.Status)
	assert.Contains(t, row.Error, "exited 3")
	assert.Contains(t, row.Error, "boom")
}

func TestSupervisorDispatcherIndexesLogsPerRun(t *testing.T) {
	dispatcher := &SupervisorDispatcher{}
	runA := uuid.New()
	runB := uuid.New()

	assert.Equal(t, 0, dispatcher.commandIndex(runA))
	assert.Equal(t, 1, dispatcher.commandIndex(runA))
	assert.Equal(t, 0, dispatcher.commandIndex(runB))
}
