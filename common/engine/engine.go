// Package engine executes missions: task groups walked in order, each
// task driven to a terminal state through a Dispatcher. A self-heal
// strategy retries a failed group once through a recovery task before
// giving up. Every run leaves a workflow run row and a JSONL trace.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/evidence"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/telemetry"
)

// Strategy picks how a group reacts to a failed task
type Strategy string

const (
	// StrategyPlain fails the group on the first failed task
	StrategyPlain Strategy = "plain"

	// StrategySelfHeal retries a failed group once through a recovery
	// task cloned from the first failed task
	StrategySelfHeal Strategy = "self_heal"
)

// Options tune one engine instance
type Options struct {
	// TraceDir is where run trace files land; empty disables tracing
	TraceDir string

	Strategy Strategy

	// SuppressSummaryArtifact skips the completion artifact on clean runs
	SuppressSummaryArtifact bool

	// Metrics records run outcomes; nil disables instrumentation
	Metrics *telemetry.Metrics
}

// Engine walks a mission's task groups in order and drives every task
// to a terminal state
type Engine struct {
	store      *store.Store
	dispatcher Dispatcher
	evidence   *evidence.Emitter
	logger     *logger.Logger
	opts       Options
}

// New builds an engine. A nil dispatcher gets the simulated one and an
// empty strategy defaults to self-heal, mirroring the API default.
func New(st *store.Store, dispatcher Dispatcher, emitter *evidence.Emitter, log *logger.Logger, opts Options) *Engine {
	if dispatcher == nil {
		dispatcher = Simulated()
	}
	if emitter == nil {
		emitter = evidence.New("")
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategySelfHeal
	}
	return &Engine{
		store:      st,
		dispatcher: dispatcher,
		evidence:   emitter,
		logger:     log,
		opts:       opts,
	}
}

// groupResult is the outcome of one group's execution
type groupResult struct {
	ok bool

	// last task that reached a terminal state in the group; the failing
	// task when ok is false
	taskID uuid.UUID

	err error
}

// runOutcome is the outcome of the whole group loop
type runOutcome struct {
	status   models.Status
	lastTask uuid.UUID
	failure  error
}

// Run executes the mission's groups in order and returns the final
// mission status. Task failures end as StatusFailed with a nil error;
// the error return covers rejected runs and persistence faults. The
// run row for the attempt is readable via the run repository.
func (e *Engine) Run(ctx context.Context, missionID uuid.UUID) (models.Status, error) {
	mission, err := e.store.Missions.GetByID(ctx, missionID)
	if err != nil {
		return "", err
	}

	mode := mission.RunMode
	if mode == "" {
		mode = models.RunModeSequential
	}
	if mode != models.RunModeSequential {
		return "", apperr.Conflict(apperr.CodeRunModeReserved,
			fmt.Sprintf("run_mode %s is reserved for a future scheduler", mode))
	}

	groups, err := e.store.Groups.ListByMission(ctx, mission.ID)
	if err != nil {
		return "", err
	}
	if len(groups) == 0 {
		return "", apperr.Conflict(apperr.CodeNoTaskGroups, "mission has no task groups to run")
	}

	if err := e.store.Missions.UpdateStatus(ctx, mission.ID, models.StatusRunning); err != nil {
		return "", err
	}
	mission.Status = models.StatusRunning

	started := time.Now()
	run := models.NewWorkflowRun(mission.ID, mode)
	var trace *Trace
	if e.opts.TraceDir != "" {
		run.TraceURI = TracePathFor(e.opts.TraceDir, run.RunID.String())
		trace = NewTrace(run.TraceURI)
	}
	if err := e.store.Runs.Create(ctx, run); err != nil {
		return "", err
	}

	log := e.logger.WithMissionID(mission.ID.String()).WithRunID(run.RunID.String())
	log.Info("workflow run started", "strategy", string(e.opts.Strategy), "groups", len(groups))
	e.emitTrace(trace, EventRunStarted, document.Doc{
		"mission_id": mission.ID.String(),
		"mode":       string(mode),
		"run_id":     run.RunID.String(),
	})

	outcome := e.runGroups(ctx, mission, groups, run, trace, log)

	if err := e.store.Missions.UpdateStatus(ctx, mission.ID, outcome.status); err != nil {
		return "", err
	}

	if outcome.status == models.StatusCompleted && !e.opts.SuppressSummaryArtifact {
		summary := models.TruncateSummary(fmt.Sprintf("Mission completed: %s", mission.Title))
		e.recordRunArtifact(ctx, mission, run, outcome.lastTask, summary, true, log)
	}

	if outcome.status == models.StatusFailed {
		message := "workflow failed"
		if outcome.failure != nil {
			message = outcome.failure.Error()
		}
		e.emitTrace(trace, EventRunFailed, document.Doc{"error": message})
		log.Error("workflow run failed", "error", message)
	} else {
		e.emitTrace(trace, EventRunCompleted, document.Doc{"status": string(outcome.status)})
		log.Info("workflow run completed")
	}

	ended := time.Now().UTC()
	run.Status = outcome.status
	run.EndedAt = &ended
	if err := e.store.Runs.Update(ctx, run); err != nil {
		return "", err
	}

	e.opts.Metrics.ObserveRun(string(outcome.status), time.Since(started))

	return outcome.status, nil
}

// runGroups walks the groups in order, stopping at the first failure
// or when the mission is failed out-of-band between groups
func (e *Engine) runGroups(ctx context.Context, mission *models.Mission, groups []*models.TaskGroup, run *models.WorkflowRun, trace *Trace, log *logger.Logger) runOutcome {
	var lastTask uuid.UUID
	for _, group := range groups {
		res := e.executeGroup(ctx, mission, group, run, trace, log)
		if res.taskID != uuid.Nil {
			lastTask = res.taskID
		}
		if !res.ok {
			return runOutcome{status: models.StatusFailed, lastTask: lastTask, failure: res.err}
		}

		// refresh so out-of-band cancellation stops the run between groups
		fresh, err := e.store.Missions.GetByID(ctx, mission.ID)
		if err == nil && fresh.Status == models.StatusFailed {
			log.Warn("mission failed externally, stopping run")
			return runOutcome{
				status:   models.StatusFailed,
				lastTask: lastTask,
				failure:  errors.New("mission marked failed externally"),
			}
		}
	}
	return runOutcome{status: models.StatusCompleted, lastTask: lastTask}
}

func (e *Engine) executeGroup(ctx context.Context, mission *models.Mission, group *models.TaskGroup, run *models.WorkflowRun, trace *Trace, log *logger.Logger) groupResult {
	if e.opts.Strategy == StrategySelfHeal {
		return e.executeGroupSelfHeal(ctx, mission, group, run, trace, log)
	}
	return e.executeGroupPlain(ctx, group, run, trace, log)
}

// executeGroupPlain runs the group's tasks in order and fails the
// group on the first failed task
func (e *Engine) executeGroupPlain(ctx context.Context, group *models.TaskGroup, run *models.WorkflowRun, trace *Trace, log *logger.Logger) groupResult {
	if err := e.store.Groups.UpdateStatus(ctx, group.ID, models.StatusRunning); err != nil {
		return groupResult{err: err}
	}

	tasks, err := e.store.Tasks.ListByGroup(ctx, group.ID)
	if err != nil {
		return groupResult{err: err}
	}

	var last uuid.UUID
	for _, task := range tasks {
		e.executeTask(ctx, task, run, trace, log)
		last = task.ID
		if task.Status == models.StatusFailed {
			if err := e.store.Groups.UpdateStatus(ctx, group.ID, models.StatusFailed); err != nil {
				log.Error("failed to mark group failed", "group_id", group.ID.String(), "error", err.Error())
			}
			return groupResult{
				taskID: task.ID,
				err:    fmt.Errorf("task %s failed: %s", task.ID, task.Error),
			}
		}
	}

	if err := e.store.Groups.UpdateStatus(ctx, group.ID, models.StatusCompleted); err != nil {
		return groupResult{taskID: last, err: err}
	}
	return groupResult{ok: true, taskID: last}
}

// executeTask drives one task to a terminal state. Dispatch failures
// are recorded on the task, never returned.
func (e *Engine) executeTask(ctx context.Context, task *models.Task, run *models.WorkflowRun, trace *Trace, log *logger.Logger) {
	task.Status = models.StatusRunning
	if err := e.store.Tasks.Update(ctx, task); err != nil {
		task.Status = models.StatusFailed
		task.Error = err.Error()
		log.Error("failed to mark task running", "task_id", task.ID.String(), "error", err.Error())
		return
	}

	if task.Input == nil {
		task.Input = document.Doc{}
	}

	output, err := e.dispatcher.Dispatch(ctx, task, run)
	if err != nil {
		task.Error = err.Error()
		task.Status = models.StatusFailed
	} else {
		task.Output = output
		task.Status = models.StatusCompleted
	}

	if err := e.store.Tasks.Update(ctx, task); err != nil {
		task.Status = models.StatusFailed
		if task.Error == "" {
			task.Error = err.Error()
		}
		log.Error("failed to persist task result", "task_id", task.ID.String(), "error", err.Error())
	}

	e.emitTrace(trace, EventTaskExecuted, document.Doc{
		"task_id": task.ID.String(),
		"status":  string(task.Status),
		"output":  task.Output,
		"run_id":  run.RunID.String(),
	})
	log.Info("task executed", "task_id", task.ID.String(), "title", task.Title, "status", string(task.Status))
}

// emitTrace writes one trace event; trace failures are logged and
// never abort the run
func (e *Engine) emitTrace(trace *Trace, event string, payload document.Doc) {
	if trace == nil {
		return
	}
	if err := trace.Emit(event, payload); err != nil {
		e.logger.Warn("failed to write trace event", "event", event, "error", err.Error())
	}
}
