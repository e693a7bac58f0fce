package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/evidence"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

// executeGroupSelfHeal runs the group and, when it fails, retries once
// through a recovery task cloned from the first failed task. A
// successful recovery completes the group; a failed one keeps the
// original failure and raises a signal for review.
func (e *Engine) executeGroupSelfHeal(ctx context.Context, mission *models.Mission, group *models.TaskGroup, run *models.WorkflowRun, trace *Trace, log *logger.Logger) groupResult {
	res := e.executeGroupPlain(ctx, group, run, trace, log)
	if res.ok {
		return res
	}

	tasks, err := e.store.Tasks.ListByGroup(ctx, group.ID)
	if err != nil {
		log.Error("failed to list tasks for self-heal", "group_id", group.ID.String(), "error", err.Error())
		return res
	}

	var failed *models.Task
	for _, task := range tasks {
		if task.Status == models.StatusFailed {
			failed = task
			break
		}
	}
	if failed == nil {
		// group failed without an identifiable task, nothing to retry
		log.Warn("self-heal skipped, no failed task in group", "group_id", group.ID.String())
		return res
	}

	log.Info("attempting self-heal", "group_id", group.ID.String(),
		"failed_task_id", failed.ID.String(), "error", failed.Error)
	e.evidence.Emit(evidence.EventSelfHeal, document.Doc{
		"mission_id": mission.ID.String(),
		"run_id":     run.RunID.String(),
		"group_id":   group.ID.String(),
		"task_id":    failed.ID.String(),
		"error":      failed.Error,
	})

	recovery := &models.Task{
		ID:        uuid.New(),
		MissionID: failed.MissionID,
		GroupID:   group.ID,
		AgentID:   failed.AgentID,
		Title:     "Recovery: " + failed.Title,
		Status:    models.StatusPending,
		Order:     failed.Order,
		Input: document.Doc{
			"error":          failed.Error,
			"original_input": failed.Input,
		},
	}
	if err := e.store.Tasks.Create(ctx, recovery); err != nil {
		log.Error("failed to create recovery task", "group_id", group.ID.String(), "error", err.Error())
		return res
	}

	e.executeTask(ctx, recovery, run, trace, log)

	if recovery.Status != models.StatusCompleted {
		summary := models.TruncateSummary(
			fmt.Sprintf("Self-heal failed after %s -> %s", failed.Title, failed.Error))
		e.recordRunArtifact(ctx, mission, run, failed.ID, summary, false, log)
		e.raiseSelfHealSignal(ctx, mission, failed, log)
		log.Warn("self-heal failed, keeping original failure",
			"recovery_task_id", recovery.ID.String(), "error", recovery.Error)
		return res
	}

	if err := e.store.Groups.UpdateStatus(ctx, group.ID, models.StatusCompleted); err != nil {
		log.Error("failed to mark healed group completed", "group_id", group.ID.String(), "error", err.Error())
		return res
	}

	summary := models.TruncateSummary(
		fmt.Sprintf("Recovered after %s -> %s", failed.Title, failed.Error))
	e.recordRunArtifact(ctx, mission, run, recovery.ID, summary, true, log)
	e.evidence.Emit(evidence.EventSelfHealOK, document.Doc{
		"mission_id":       mission.ID.String(),
		"run_id":           run.RunID.String(),
		"group_id":         group.ID.String(),
		"task_id":          failed.ID.String(),
		"recovery_task_id": recovery.ID.String(),
	})
	log.Info("self-heal succeeded", "group_id", group.ID.String(),
		"recovery_task_id", recovery.ID.String())

	return groupResult{ok: true, taskID: recovery.ID}
}

// recordRunArtifact persists the artifact plus derived knowledge for a
// self-heal outcome or a clean-run summary. Persistence faults here
// are logged, not fatal: the run result stands on its own.
func (e *Engine) recordRunArtifact(ctx context.Context, mission *models.Mission, run *models.WorkflowRun, taskID uuid.UUID, summary string, success bool, log *logger.Logger) {
	artifactType := models.TypeSelfHealSuccess
	if !success {
		artifactType = models.TypeSelfHealFailure
	}

	digest := SyntheticDigest(run.RunID, taskID, summary)

	artifact := &models.Artifact{
		ID:          uuid.New(),
		MissionID:   mission.ID,
		Type:        artifactType,
		Scope:       models.ScopeMission,
		Path:        selfHealPath(run.RunID, taskID, summary),
		Version:     "1",
		SHA256:      digest,
		ContentMeta: document.Doc{"success": success},
		Tags:        []string{"self-heal", "workflow"},
		CreatedAt:   time.Now().UTC(),
	}
	if taskID != uuid.Nil {
		ref := taskID
		artifact.TaskID = &ref
	}
	if err := e.store.Artifacts.Create(ctx, artifact); err != nil {
		log.Error("failed to record run artifact", "mission_id", mission.ID.String(), "error", err.Error())
		return
	}

	sourceID := artifact.ID
	knowledge := &models.Knowledge{
		ID:               uuid.New(),
		ArtifactID:       artifact.ID,
		SourceArtifactID: &sourceID,
		Version:          artifact.Version,
		SHA256:           digest,
		Scope:            models.ScopeMission,
		Tags:             []string{"self-heal", "workflow"},
		Summary:          summary,
		Reusable:         success,
	}
	if err := e.store.Knowledge.Create(ctx, knowledge); err != nil {
		log.Error("failed to record run knowledge", "artifact_id", artifact.ID.String(), "error", err.Error())
	}
}

// raiseSelfHealSignal files a pending signal so a human reviews the
// unrecovered failure
func (e *Engine) raiseSelfHealSignal(ctx context.Context, mission *models.Mission, failed *models.Task, log *logger.Logger) {
	missionRef := mission.ID
	signal := &models.Signal{
		ID:        uuid.New(),
		ProjectID: mission.ProjectID,
		MissionID: &missionRef,
		Type:      models.SignalSelfHealFailed,
		Severity:  models.SeverityWarning,
		Status:    models.SignalPending,
		Message:   fmt.Sprintf("Self-heal failed for task %q: %s", failed.Title, failed.Error),
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.Signals.Create(ctx, signal); err != nil {
		log.Error("failed to raise self-heal signal", "mission_id", mission.ID.String(), "error", err.Error())
	}
}

// SyntheticDigest derives the content hash for artifacts without a
// file body: sha256("<run_id>:<task_id>:<summary>")
func SyntheticDigest(runID, taskID uuid.UUID, summary string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s", runID, taskID, summary)))
	return hex.EncodeToString(sum[:])
}

// selfHealPath builds the logical artifact location; the summary part
// is capped so paths stay short
func selfHealPath(runID, taskID uuid.UUID, summary string) string {
	if len(summary) > 64 {
		summary = summary[:64]
	}
	return fmt.Sprintf("self_heal/%s/%s:%s", runID, taskID, summary)
}
