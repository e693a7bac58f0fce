package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/container"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/events"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

// MissionHandler handles mission CRUD and authoring requests
type MissionHandler struct {
	c *container.Container
}

// NewMissionHandler creates a new mission handler
func NewMissionHandler(c *container.Container) *MissionHandler {
	return &MissionHandler{c: c}
}

// ListMissions lists mission summaries, newest first
// GET /api/missions?limit=50
func (h *MissionHandler) ListMissions(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return apperr.Validation(apperr.CodeInvalidPayload, "limit must be a positive integer")
		}
		limit = parsed
	}

	summaries, err := h.c.Components.Store.Missions.Summaries(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, summaries)
}

// CreateMissionRequest is the body of POST /api/missions
type CreateMissionRequest struct {
	ProjectSlug string `json:"project_slug" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Summary     string `json:"summary"`
	Status      string `json:"status" validate:"omitempty,oneof=pending running completed failed"`
	Owner       string `json:"owner"`
}

// CreateMission creates a mission under a project, creating the
// project when the slug is new
// POST /api/missions
func (h *MissionHandler) CreateMission(c echo.Context) error {
	var req CreateMissionRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(apperr.CodeInvalidPayload, "malformed mission payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	store := h.c.Components.Store

	project, err := store.Projects.Ensure(ctx, req.ProjectSlug)
	if err != nil {
		return err
	}

	mission := models.NewMission(project.ID, req.Title)
	mission.Owner = req.Owner
	if req.Status != "" {
		mission.Status = models.Status(req.Status)
	}
	if req.Summary != "" {
		mission.Context = document.Doc{"summary": req.Summary}
	}

	if err := store.Missions.Create(ctx, mission); err != nil {
		return err
	}

	h.publish(c, events.EventMissionCreated, project.Slug, mission.ID.String(), "", document.Doc{
		"title":  mission.Title,
		"status": string(mission.Status),
	})

	return c.JSON(http.StatusCreated, mission)
}

// MissionDetail is a mission with its groups and tasks inlined
type MissionDetail struct {
	*models.Mission
	TaskGroups []GroupDetail `json:"task_groups"`
}

// GroupDetail is a task group with its tasks inlined
type GroupDetail struct {
	*models.TaskGroup
	Tasks []*models.Task `json:"tasks"`
}

// GetMission returns one mission with groups and tasks
// GET /api/missions/:id
func (h *MissionHandler) GetMission(c echo.Context) error {
	missionID, err := parseMissionID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	store := h.c.Components.Store

	mission, err := store.Missions.GetByID(ctx, missionID)
	if err != nil {
		return err
	}

	groups, err := store.Groups.ListByMission(ctx, mission.ID)
	if err != nil {
		return err
	}

	detail := MissionDetail{Mission: mission, TaskGroups: make([]GroupDetail, 0, len(groups))}
	for _, group := range groups {
		tasks, err := store.Tasks.ListByGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		if tasks == nil {
			tasks = []*models.Task{}
		}
		detail.TaskGroups = append(detail.TaskGroups, GroupDetail{TaskGroup: group, Tasks: tasks})
	}

	return c.JSON(http.StatusOK, detail)
}

// PatchContext applies an RFC 6902 JSON Patch to the mission context
// PATCH /api/missions/:id/context
func (h *MissionHandler) PatchContext(c echo.Context) error {
	missionID, err := parseMissionID(c)
	if err != nil {
		return err
	}

	body, err := readBody(c)
	if err != nil {
		return apperr.Validation(apperr.CodeInvalidPayload, "unreadable patch body")
	}

	patch, err := jsonpatch.DecodePatch(body)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidPayload, "malformed JSON patch", err)
	}

	ctx := c.Request().Context()
	store := h.c.Components.Store

	mission, err := store.Missions.GetByID(ctx, missionID)
	if err != nil {
		return err
	}

	current := mission.Context
	if current == nil {
		current = document.New()
	}
	encoded, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to encode mission context: %w", err)
	}

	patched, err := patch.Apply(encoded)
	if err != nil {
		return apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidPayload, "patch does not apply", err)
	}

	var next document.Doc
	if err := json.Unmarshal(patched, &next); err != nil {
		return apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidPayload, "patch result is not an object", err)
	}

	if err := store.Missions.UpdateContext(ctx, missionID, next); err != nil {
		return err
	}

	mission.Context = next
	return c.JSON(http.StatusOK, mission)
}

// CreateGroupRequest is the body of POST /api/missions/:id/groups
type CreateGroupRequest struct {
	Title string `json:"title" validate:"required"`
	Kind  string `json:"kind" validate:"omitempty,oneof=sequential parallel loop"`
	Order int    `json:"order"`
}

// CreateGroup appends a task group to a mission
// POST /api/missions/:id/groups
func (h *MissionHandler) CreateGroup(c echo.Context) error {
	missionID, err := parseMissionID(c)
	if err != nil {
		return err
	}

	var req CreateGroupRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(apperr.CodeInvalidPayload, "malformed group payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	store := h.c.Components.Store

	if _, err := store.Missions.GetByID(ctx, missionID); err != nil {
		return err
	}

	kind := models.RunModeSequential
	if req.Kind != "" {
		kind = models.RunMode(req.Kind)
	}

	group := &models.TaskGroup{
		MissionID: missionID,
		Title:     req.Title,
		Kind:      kind,
		Order:     req.Order,
		Status:    models.StatusPending,
	}
	if err := store.Groups.Create(ctx, group); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, group)
}

// CreateTaskRequest is the body of POST /api/missions/:id/tasks
type CreateTaskRequest struct {
	GroupID   string       `json:"group_id" validate:"required,uuid"`
	AgentName string       `json:"agent_name"`
	Title     string       `json:"title" validate:"required"`
	Order     int          `json:"order"`
	Input     document.Doc `json:"input"`
}

// CreateTask appends a task to a group, ensuring the named agent
// exists in the mission's project
// POST /api/missions/:id/tasks
func (h *MissionHandler) CreateTask(c echo.Context) error {
	missionID, err := parseMissionID(c)
	if err != nil {
		return err
	}

	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(apperr.CodeInvalidPayload, "malformed task payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	store := h.c.Components.Store

	mission, err := store.Missions.GetByID(ctx, missionID)
	if err != nil {
		return err
	}

	groupID := uuid.MustParse(req.GroupID)
	group, err := store.Groups.GetByID(ctx, groupID)
	if err != nil {
		return err
	}
	if group.MissionID != mission.ID {
		return apperr.Conflict(apperr.CodeGroupNotFound, "group belongs to a different mission")
	}

	agentName := req.AgentName
	if agentName == "" {
		agentName = "default"
	}
	agent, err := store.Agents.Ensure(ctx, mission.ProjectID, agentName)
	if err != nil {
		return err
	}

	task := &models.Task{
		MissionID: &mission.ID,
		GroupID:   group.ID,
		AgentID:   agent.ID,
		Title:     req.Title,
		Status:    models.StatusPending,
		Order:     req.Order,
		Input:     req.Input,
	}
	if err := store.Tasks.Create(ctx, task); err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, task)
}

// publish emits a hub event, best-effort
func (h *MissionHandler) publish(c echo.Context, name, project, missionID, runID string, payload document.Doc) {
	publisher := h.c.Components.Events
	if publisher == nil {
		return
	}

	event := events.New(name, project)
	event.MissionID = missionID
	event.RunID = runID
	event.Payload = payload

	if err := publisher.Publish(c.Request().Context(), event); err != nil {
		h.c.Components.Logger.Warn("failed to publish hub event", "event", name, "error", err)
	}
}

// parseMissionID extracts and validates the :id path param
func parseMissionID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.NotFound(apperr.CodeMissionNotFound, "mission id is not a UUID")
	}
	return id, nil
}
