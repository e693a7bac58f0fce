package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowRun is one execution attempt of a mission
// Maps to: workflow_run table
type WorkflowRun struct {
	// RunID doubles as the trace file identity
	RunID     uuid.UUID `db:"run_id" json:"run_id"`
	MissionID uuid.UUID `db:"mission_id" json:"mission_id"`

	// Mirrors the mission run_mode at the time of the run
	Mode RunMode `db:"mode" json:"mode"`

	Status    Status     `db:"status" json:"status"`
	StartedAt time.Time  `db:"started_at" json:"started_at"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at,omitempty"`

	// Location of the JSONL trace for this run
	TraceURI string `db:"trace_uri" json:"trace_uri,omitempty"`
}

// NewWorkflowRun starts a run record for a mission
func NewWorkflowRun(missionID uuid.UUID, mode RunMode) *WorkflowRun {
	return &WorkflowRun{
		RunID:     uuid.New(),
		MissionID: missionID,
		Mode:      mode,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
}
