package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/container"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/audit"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/events"
)

// RunHandler triggers synchronous workflow runs
type RunHandler struct {
	c *container.Container
}

// NewRunHandler creates a new run handler
func NewRunHandler(c *container.Container) *RunHandler {
	return &RunHandler{c: c}
}

// RunAcceptedResponse is the body of a successful run trigger
type RunAcceptedResponse struct {
	MissionID string `json:"mission_id"`
	Status    string `json:"status"`
	RunID     string `json:"run_id"`
}

// RunMission executes a mission's task groups and reports the final
// status. The run is synchronous but the endpoint answers 202 so
// callers treat the status as a snapshot, not a receipt.
// POST /missions/:id/run?allow_self_heal=true
func (h *RunHandler) RunMission(c echo.Context) error {
	missionID, err := parseMissionID(c)
	if err != nil {
		return err
	}

	allowSelfHeal := true
	if raw := c.QueryParam("allow_self_heal"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return apperr.Validation(apperr.CodeInvalidPayload, "allow_self_heal must be a boolean")
		}
		allowSelfHeal = parsed
	}

	ctx := c.Request().Context()
	store := h.c.Components.Store

	status, err := h.c.WorkflowEngine(allowSelfHeal).Run(ctx, missionID)
	if err != nil {
		return err
	}

	run, err := store.Runs.LatestByMission(ctx, missionID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Fatal(apperr.CodeRunNotRecorded, "run finished but left no run row", err)
		}
		return err
	}

	record := audit.NewRecord("ENGINE", audit.EventApply)
	record.Metadata = document.Doc{
		"mission_id": missionID.String(),
		"run_id":     run.RunID.String(),
		"status":     string(status),
	}
	if _, err := h.c.Audit.Append(record); err != nil {
		h.c.Components.Logger.Warn("failed to append run audit record", "error", err)
	}

	if mission, err := store.Missions.GetByID(ctx, missionID); err == nil {
		if project, err := store.Projects.GetByID(ctx, mission.ProjectID); err == nil {
			h.publishRunFinished(c, project.Slug, missionID.String(), run.RunID.String(), string(status))
		}
	}

	return c.JSON(http.StatusAccepted, RunAcceptedResponse{
		MissionID: missionID.String(),
		Status:    string(status),
		RunID:     run.RunID.String(),
	})
}

func (h *RunHandler) publishRunFinished(c echo.Context, project, missionID, runID, status string) {
	publisher := h.c.Components.Events
	if publisher == nil {
		return
	}

	event := events.New(events.EventMissionRunFinished, project)
	event.MissionID = missionID
	event.RunID = runID
	event.Payload = document.Doc{"status": status}

	if err := publisher.Publish(c.Request().Context(), event); err != nil {
		h.c.Components.Logger.Warn("failed to publish run event", "event", event.Event, "error", err)
	}
}
