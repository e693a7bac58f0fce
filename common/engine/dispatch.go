package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/supervisor"
)

// Dispatcher executes one task and returns its output document. The
// run is passed for log and trace correlation. A non-nil error marks
// the task failed with error = err.Error().
type Dispatcher interface {
	Dispatch(ctx context.Context, task *models.Task, run *models.WorkflowRun) (document.Doc, error)
}

// DispatchFunc adapts a plain function to the Dispatcher interface
type DispatchFunc func(ctx context.Context, task *models.Task, run *models.WorkflowRun) (document.Doc, error)

// Dispatch calls f
func (f DispatchFunc) Dispatch(ctx context.Context, task *models.Task, run *models.WorkflowRun) (document.Doc, error) {
	return f(ctx, task, run)
}

// Simulated returns the default dispatcher: every task succeeds with a
// canned payload and never touches an agent process.
func Simulated() Dispatcher {
	return DispatchFunc(func(ctx context.Context, task *models.Task, run *models.WorkflowRun) (document.Doc, error) {
		return document.Doc{
			"result":    "simulated_success",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}, nil
	})
}

// SupervisorDispatcher runs each task as a real agent subprocess via
// the process supervisor. The task's agent row decides the command.
type SupervisorDispatcher struct {
	Supervisor *supervisor.Supervisor
	Agents     store.AgentRepository

	// Resolve maps an agent to the argv and working directory to spawn
	Resolve func(agent *models.Agent) (command []string, workdir string, err error)

	TraceDir string
	Timeout  time.Duration

	mu   sync.Mutex
	next map[uuid.UUID]int
}

// Dispatch spawns the agent command for the task and blocks until it
// exits or times out
func (d *SupervisorDispatcher) Dispatch(ctx context.Context, task *models.Task, run *models.WorkflowRun) (document.Doc, error) {
	agent, err := d.Agents.GetByID(ctx, task.AgentID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve task agent: %w", err)
	}

	command, workdir, err := d.Resolve(agent)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve agent command: %w", err)
	}

	index := d.commandIndex(run.RunID)
	result, err := d.Supervisor.SpawnBatch(ctx, supervisor.Spec{
		Command:      command,
		MissionID:    run.MissionID.String(),
		RunID:        run.RunID.String(),
		TraceDir:     d.TraceDir,
		Timeout:      d.Timeout,
		CommandIndex: &index,
		Role:         agent.Name,
		Workdir:      workdir,
	})
	if err != nil {
		return nil, err
	}
	if result.TimedOut {
		return nil, apperr.Transient(apperr.CodeAgentTimeout,
			fmt.Sprintf("agent %s timed out after %s", agent.Name, d.Timeout), nil)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("agent %s exited %d: %s", agent.Name, result.ExitCode, tail(result.Stderr, 512))
	}

	return document.Doc{
		"result":    "ok",
		"exit_code": result.ExitCode,
		"stdout":    strings.TrimSpace(result.Stdout),
		"log_path":  result.LogPath,
	}, nil
}

// commandIndex hands out sequential per-run log indexes so task logs
// within one run never collide
func (d *SupervisorDispatcher) commandIndex(runID uuid.UUID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next == nil {
		d.next = make(map[uuid.UUID]int)
	}
	index := d.next[runID]
	d.next[runID] = index + 1
	return index
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
