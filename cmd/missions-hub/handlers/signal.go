package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/container"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/signals"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
)

// SignalHandler handles the signal review pipeline
type SignalHandler struct {
	c *container.Container
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(c *container.Container) *SignalHandler {
	return &SignalHandler{c: c}
}

// CreateSignalRequest is the body of POST /api/signals. Exactly one of
// project (human key, created on first use) or project_id must identify
// the owning project; a non-UUID project_id is treated as a human key.
type CreateSignalRequest struct {
	Project   string `json:"project"`
	ProjectID string `json:"project_id"`
	MissionID string `json:"mission_id"`
	Type      string `json:"type" validate:"required"`
	Severity  string `json:"severity" validate:"omitempty,oneof=info warning error critical"`
	Status    string `json:"status" validate:"omitempty,oneof=pending approved denied acknowledged"`
	Message   string `json:"message"`
}

// CreateSignal records a signal, classifying severity when omitted
// POST /api/signals
func (h *SignalHandler) CreateSignal(c echo.Context) error {
	var req CreateSignalRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(apperr.CodeInvalidPayload, "malformed signal payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()

	project, err := h.resolveProject(c, req.Project, req.ProjectID)
	if err != nil {
		return err
	}

	params := signals.CreateParams{
		ProjectID: project.ID,
		Type:      req.Type,
		Severity:  models.Severity(req.Severity),
		Status:    models.SignalStatus(req.Status),
		Message:   req.Message,
	}
	if req.MissionID != "" {
		// accepts both canonical and dashless forms
		missionID, err := uuid.Parse(req.MissionID)
		if err != nil {
			return apperr.Validation(apperr.CodeInvalidPayload, "mission_id is not a UUID")
		}
		params.MissionID = &missionID
	}

	signal, err := h.c.Signals.Create(ctx, params)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, signal)
}

// SignalListResponse is the body of GET /api/signals
type SignalListResponse struct {
	Signals []*models.Signal `json:"signals"`
}

// ListSignals lists signals newest-first, optionally narrowed by
// project, status and type
// GET /api/signals?project=&status=&type=&limit=
func (h *SignalHandler) ListSignals(c echo.Context) error {
	ctx := c.Request().Context()

	filter := store.SignalFilter{
		Status: models.SignalStatus(c.QueryParam("status")),
		Type:   c.QueryParam("type"),
	}

	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return apperr.Validation(apperr.CodeInvalidPayload, "limit must be a positive integer")
		}
		filter.Limit = parsed
	}

	if slug := c.QueryParam("project"); slug != "" {
		project, err := h.c.Components.Store.Projects.GetBySlug(ctx, slug)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return c.JSON(http.StatusOK, SignalListResponse{Signals: []*models.Signal{}})
			}
			return err
		}
		filter.ProjectID = &project.ID
	}

	list, err := h.c.Signals.List(ctx, filter)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*models.Signal{}
	}

	return c.JSON(http.StatusOK, SignalListResponse{Signals: list})
}

// TransitionRequest is the body of POST /api/signals/:id/transition
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// TransitionSignal moves a pending signal to a reviewed state
// POST /api/signals/:id/transition
func (h *SignalHandler) TransitionSignal(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.NotFound(apperr.CodeSignalNotFound, "signal id is not a UUID")
	}

	var req TransitionRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(apperr.CodeInvalidPayload, "malformed transition payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	signal, err := h.c.Signals.Transition(c.Request().Context(), id, models.SignalStatus(req.Status))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, signal)
}

// ImportDangerousRequest is the body of POST /api/signals/import/dangerous
type ImportDangerousRequest struct {
	Path      string `json:"path" validate:"required"`
	Project   string `json:"project"`
	ProjectID string `json:"project_id"`
	MaxRows   int    `json:"max_rows"`
}

// ImportDangerousResponse reports how many signals an import created
type ImportDangerousResponse struct {
	Imported int `json:"imported"`
}

// ImportDangerous ingests a dangerous-command JSONL log, creating one
// pending signal per row that matches a classification rule
// POST /api/signals/import/dangerous
func (h *SignalHandler) ImportDangerous(c echo.Context) error {
	var req ImportDangerousRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(apperr.CodeInvalidPayload, "malformed import payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	project, err := h.resolveProject(c, req.Project, req.ProjectID)
	if err != nil {
		return err
	}

	imported, err := h.c.Signals.ImportDangerous(c.Request().Context(), req.Path, project.ID, req.MaxRows)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, ImportDangerousResponse{Imported: imported})
}

// resolveProject finds the project a signal belongs to. A UUID
// project_id must exist; anything else is an Ensure-style human key.
func (h *SignalHandler) resolveProject(c echo.Context, project, projectID string) (*models.Project, error) {
	ctx := c.Request().Context()
	repo := h.c.Components.Store.Projects

	if projectID != "" {
		if id, err := uuid.Parse(projectID); err == nil {
			return repo.GetByID(ctx, id)
		}
		return repo.Ensure(ctx, projectID)
	}
	if project != "" {
		return repo.Ensure(ctx, project)
	}
	return nil, apperr.Validation(apperr.CodeInvalidPayload, "project or project_id is required")
}
