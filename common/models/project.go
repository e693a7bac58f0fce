package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
)

// Project is the ownership root for agents, missions and signals
// Maps to: project table
type Project struct {
	ID uuid.UUID `db:"id" json:"id"`

	// URL-safe unique identity derived from the human key
	Slug string `db:"slug" json:"slug"`

	// Human-readable key (often a filesystem path or repo name)
	HumanKey string `db:"human_key" json:"human_key"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SlugFromHumanKey derives the project slug from a human key by
// replacing path separators and drive colons
func SlugFromHumanKey(humanKey string) string {
	slug := strings.ReplaceAll(humanKey, "\\", "-")
	slug = strings.ReplaceAll(slug, ":", "-")
	slug = strings.ReplaceAll(slug, "/", "-")
	return strings.Trim(slug, "-")
}

// Agent is the identity of an executor role within a project.
// (project_id, name) is unique.
// Maps to: agent table
type Agent struct {
	ID        uuid.UUID `db:"id" json:"id"`
	ProjectID uuid.UUID `db:"project_id" json:"project_id"`
	Name      string    `db:"name" json:"name"`

	// Executable the role runs (e.g. "codex", "claude")
	Program string `db:"program" json:"program,omitempty"`

	// Model identifier the program is pinned to
	Model string `db:"model" json:"model,omitempty"`

	Skills []string `db:"skills" json:"skills,omitempty"`

	// Opaque contact/handoff policy
	ContactPolicy document.Doc `db:"contact_policy" json:"contact_policy,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
