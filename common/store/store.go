// Package store defines the persistence contracts for all domain
// entities. Two backends implement them: store/postgres for
// production and store/memory for tests and single-binary setups.
// Repositories return apperr.NotFound for absent rows so callers can
// map them to HTTP statuses without inspecting driver errors.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

// Store bundles the per-entity repositories behind one handle
type Store struct {
	Projects  ProjectRepository
	Agents    AgentRepository
	Missions  MissionRepository
	Groups    TaskGroupRepository
	Tasks     TaskRepository
	Artifacts ArtifactRepository
	Knowledge KnowledgeRepository
	Runs      RunRepository
	Signals   SignalRepository
}

// ProjectRepository handles project persistence
type ProjectRepository interface {
	// Ensure returns the project for a human key, creating it when
	// absent. The slug is derived from the human key; repeat calls
	// with the same key return the same row.
	Ensure(ctx context.Context, humanKey string) (*models.Project, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	GetBySlug(ctx context.Context, slug string) (*models.Project, error)
	List(ctx context.Context) ([]*models.Project, error)
}

// AgentRepository handles agent persistence
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error

	// Ensure returns the agent named name in the project, creating a
	// bare one when absent
	Ensure(ctx context.Context, projectID uuid.UUID, name string) (*models.Agent, error)

	GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Agent, error)
}

// MissionRepository handles mission persistence
type MissionRepository interface {
	Create(ctx context.Context, mission *models.Mission) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.Mission, error)

	// Summaries lists missions newest-first with group/artifact counts
	Summaries(ctx context.Context, limit int) ([]*models.MissionSummary, error)

	// UpdateStatus sets the status and bumps updated_at
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error

	// UpdateContext replaces the mission context document
	UpdateContext(ctx context.Context, id uuid.UUID, context document.Doc) error
}

// TaskGroupRepository handles task group persistence
type TaskGroupRepository interface {
	Create(ctx context.Context, group *models.TaskGroup) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.TaskGroup, error)

	// ListByMission returns groups ordered by group order ASC, ties
	// broken by insertion
	ListByMission(ctx context.Context, missionID uuid.UUID) ([]*models.TaskGroup, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error
}

// TaskRepository handles task persistence
type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)

	// ListByGroup returns tasks ordered by task order ASC, ties broken
	// by insertion
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*models.Task, error)

	// Update persists status, input, output and error
	Update(ctx context.Context, task *models.Task) error
}

// ArtifactRepository handles artifact persistence
type ArtifactRepository interface {
	Create(ctx context.Context, artifact *models.Artifact) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error)
	ListByMission(ctx context.Context, missionID uuid.UUID) ([]*models.Artifact, error)
}

// KnowledgeRepository handles knowledge persistence
type KnowledgeRepository interface {
	Create(ctx context.Context, knowledge *models.Knowledge) error
	ListByArtifact(ctx context.Context, artifactID uuid.UUID) ([]*models.Knowledge, error)
	List(ctx context.Context, limit int) ([]*models.Knowledge, error)
}

// RunRepository handles workflow run persistence
type RunRepository interface {
	Create(ctx context.Context, run *models.WorkflowRun) error
	GetByID(ctx context.Context, runID uuid.UUID) (*models.WorkflowRun, error)

	// Update persists status, ended_at and trace_uri
	Update(ctx context.Context, run *models.WorkflowRun) error

	// LatestByMission returns the most recently started run
	LatestByMission(ctx context.Context, missionID uuid.UUID) (*models.WorkflowRun, error)

	ListByMission(ctx context.Context, missionID uuid.UUID) ([]*models.WorkflowRun, error)
}

// SignalFilter narrows signal listings; zero values mean no filter
type SignalFilter struct {
	ProjectID *uuid.UUID
	Status    models.SignalStatus
	Type      string
	Limit     int
}

// SignalRepository handles signal persistence
type SignalRepository interface {
	Create(ctx context.Context, signal *models.Signal) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Signal, error)

	// List returns signals newest-first, narrowed by the filter
	List(ctx context.Context, filter SignalFilter) ([]*models.Signal, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status models.SignalStatus) error
}
