package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
)

// Status is the shared lifecycle state of missions, task groups and tasks
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status permits no further transitions
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// RunMode selects how a mission's groups are scheduled.
// Only sequential is implemented; parallel and loop are reserved.
type RunMode string

const (
	RunModeSequential RunMode = "sequential"
	RunModeParallel   RunMode = "parallel"
	RunModeLoop       RunMode = "loop"
)

// Mission is a root unit of work comprising ordered task groups
// Maps to: mission table
type Mission struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	Title     string    `db:"title" json:"title"`
	Status    Status    `db:"status" json:"status"`
	RunMode   RunMode   `db:"run_mode" json:"run_mode"`

	// Optional mission owner (free-form handle)
	Owner string `db:"owner" json:"owner,omitempty"`

	// Opaque shared context seeded into the workflow at run
	Context document.Doc `db:"context" json:"context,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TaskGroup is an ordered collection of tasks within a mission
// Maps to: task_group table
type TaskGroup struct {
	ID        uuid.UUID `db:"id" json:"id"`
	MissionID uuid.UUID `db:"mission_id" json:"mission_id"`
	Title     string    `db:"title" json:"title"`

	// sequential|parallel|loop; only sequential groups execute in v1
	Kind RunMode `db:"kind" json:"kind"`

	// Execution order within the mission, ties broken by insertion
	Order  int    `db:"group_order" json:"order"`
	Status Status `db:"status" json:"status"`
}

// Task is a single unit dispatched to an agent
// Maps to: task table
type Task struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	MissionID *uuid.UUID `db:"mission_id" json:"mission_id,omitempty"`
	GroupID   uuid.UUID  `db:"group_id" json:"group_id"`
	AgentID   uuid.UUID  `db:"agent_id" json:"agent_id"`
	Title     string     `db:"title" json:"title"`
	Status    Status     `db:"status" json:"status"`

	// Execution order within the group
	Order int `db:"task_order" json:"order"`

	Input  document.Doc `db:"input" json:"input,omitempty"`
	Output document.Doc `db:"output" json:"output,omitempty"`
	Error  string       `db:"error" json:"error,omitempty"`
}

// MissionSummary is the list-view projection of a mission
type MissionSummary struct {
	ID             uuid.UUID `json:"id"`
	Title          string    `json:"title"`
	Status         Status    `json:"status"`
	RunMode        RunMode   `json:"run_mode"`
	TaskGroupCount int       `json:"task_group_count"`
	ArtifactCount  int       `json:"artifact_count"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewMission builds a pending mission
func NewMission(projectID uuid.UUID, title string) *Mission {
	now := time.Now().UTC()
	return &Mission{
		ID:        uuid.New(),
		ProjectID: projectID,
		Title:     title,
		Status:    StatusPending,
		RunMode:   RunModeSequential,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
