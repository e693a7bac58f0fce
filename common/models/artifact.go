package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
)

// ArtifactType represents the type of artifact
type ArtifactType string

const (
	TypePlan            ArtifactType = "plan"
	TypeDiff            ArtifactType = "diff"
	TypeTestResult      ArtifactType = "test_result"
	TypeScreenshot      ArtifactType = "screenshot"
	TypeSelfHealSuccess ArtifactType = "self_heal_artifact"
	TypeSelfHealFailure ArtifactType = "self_heal_failure"
)

// Scope restricts who an artifact or knowledge row is visible to
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeUser    Scope = "user"
	ScopeProject Scope = "project"
	ScopeMission Scope = "mission"
)

// Artifact is an append-only record of something a run produced
// Maps to: artifact table
type Artifact struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	MissionID uuid.UUID  `db:"mission_id" json:"mission_id"`
	TaskID    *uuid.UUID `db:"task_id" json:"task_id,omitempty"`

	Type  ArtifactType `db:"type" json:"type"`
	Scope Scope        `db:"scope" json:"scope"`

	// URI-safe location; stable for the lifetime of the artifact
	Path    string `db:"path" json:"path"`
	Version string `db:"version" json:"version"`

	// 64 lowercase hex chars. File-backed artifacts digest the file;
	// synthetic self-heal artifacts digest "<run_id>:<task_id>:<summary>".
	SHA256 string `db:"sha256" json:"sha256"`

	ContentMeta document.Doc `db:"content_meta" json:"content_meta,omitempty"`
	Tags        []string     `db:"tags" json:"tags,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsSelfHeal checks if artifact came out of the self-heal path
func (a *Artifact) IsSelfHeal() bool {
	return a.Type == TypeSelfHealSuccess || a.Type == TypeSelfHealFailure
}

// Knowledge is a reusable lesson derived from an artifact
// Maps to: knowledge table
type Knowledge struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ArtifactID uuid.UUID `db:"artifact_id" json:"artifact_id"`

	// The artifact this knowledge was distilled from; always set
	SourceArtifactID *uuid.UUID `db:"source_artifact_id" json:"source_artifact_id,omitempty"`

	Version string `db:"version" json:"version,omitempty"`
	SHA256  string `db:"sha256" json:"sha256,omitempty"`
	Scope   Scope  `db:"scope" json:"scope"`

	Tags []string `db:"tags" json:"tags,omitempty"`

	// At most 1024 chars
	Summary  string `db:"summary" json:"summary,omitempty"`
	Reusable bool   `db:"reusable" json:"reusable"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MaxKnowledgeSummary caps the summary column
const MaxKnowledgeSummary = 1024

// TruncateSummary clips s to the knowledge summary limit
func TruncateSummary(s string) string {
	if len(s) <= MaxKnowledgeSummary {
		return s
	}
	return s[:MaxKnowledgeSummary]
}
