package handlers

import (
	"net/http"
	"sort"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/cmd/missions-hub/container"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

// ArtifactHandler handles artifact registration and listing
type ArtifactHandler struct {
	c *container.Container
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(c *container.Container) *ArtifactHandler {
	return &ArtifactHandler{c: c}
}

// ListArtifacts lists a mission's artifacts ordered by path
// GET /missions/:id/artifacts
func (h *ArtifactHandler) ListArtifacts(c echo.Context) error {
	missionID, err := parseMissionID(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	store := h.c.Components.Store

	if _, err := store.Missions.GetByID(ctx, missionID); err != nil {
		return err
	}

	artifacts, err := store.Artifacts.ListByMission(ctx, missionID)
	if err != nil {
		return err
	}
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Path < artifacts[j].Path
	})
	if artifacts == nil {
		artifacts = []*models.Artifact{}
	}

	return c.JSON(http.StatusOK, artifacts)
}

// CreateArtifactRequest is the body of POST /missions/:id/artifacts
type CreateArtifactRequest struct {
	Type        string       `json:"type" validate:"required"`
	Scope       string       `json:"scope" validate:"omitempty,oneof=session user project mission"`
	Path        string       `json:"path" validate:"required"`
	Version     string       `json:"version"`
	SHA256      string       `json:"sha256" validate:"omitempty,len=64,hexadecimal"`
	ContentMeta document.Doc `json:"content_meta"`
	Tags        []string     `json:"tags"`
	TaskID      *string      `json:"task_id" validate:"omitempty,uuid"`

	// When set, a reusable knowledge row is distilled from the artifact
	KnowledgeSummary string   `json:"knowledge_summary"`
	KnowledgeTags    []string `json:"knowledge_tags"`
}

// ArtifactResponse is an artifact plus the knowledge row distilled
// from it, when the request asked for one
type ArtifactResponse struct {
	*models.Artifact
	KnowledgeID *uuid.UUID `json:"knowledge_id,omitempty"`
}

// CreateArtifact registers an artifact, optionally distilling it into
// a knowledge entry
// POST /missions/:id/artifacts
func (h *ArtifactHandler) CreateArtifact(c echo.Context) error {
	missionID, err := parseMissionID(c)
	if err != nil {
		return err
	}

	var req CreateArtifactRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation(apperr.CodeInvalidPayload, "malformed artifact payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	store := h.c.Components.Store

	if _, err := store.Missions.GetByID(ctx, missionID); err != nil {
		return err
	}

	scope := models.ScopeMission
	if req.Scope != "" {
		scope = models.Scope(req.Scope)
	}
	version := req.Version
	if version == "" {
		version = "v1"
	}

	artifact := &models.Artifact{
		MissionID:   missionID,
		Type:        models.ArtifactType(req.Type),
		Scope:       scope,
		Path:        req.Path,
		Version:     version,
		SHA256:      req.SHA256,
		ContentMeta: req.ContentMeta,
		Tags:        req.Tags,
	}
	if req.TaskID != nil {
		taskID := uuid.MustParse(*req.TaskID)
		artifact.TaskID = &taskID
	}

	if err := store.Artifacts.Create(ctx, artifact); err != nil {
		return err
	}

	resp := ArtifactResponse{Artifact: artifact}
	if req.KnowledgeSummary != "" {
		tags := req.KnowledgeTags
		if len(tags) == 0 {
			tags = []string{"workflow"}
		}
		knowledge := &models.Knowledge{
			ArtifactID:       artifact.ID,
			SourceArtifactID: &artifact.ID,
			Version:          artifact.Version,
			SHA256:           artifact.SHA256,
			Scope:            artifact.Scope,
			Tags:             tags,
			Summary:          models.TruncateSummary(req.KnowledgeSummary),
			Reusable:         true,
		}
		if err := store.Knowledge.Create(ctx, knowledge); err != nil {
			return err
		}
		resp.KnowledgeID = &knowledge.ID
	}

	return c.JSON(http.StatusCreated, resp)
}
