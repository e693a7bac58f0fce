package migrate

import (
	"context"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/db"
)

// 001_core_tables: projects, agents, missions, groups, tasks, runs.
// task_group.seq and task.seq break ordering ties by insertion.

func upCoreTables(ctx context.Context, database *db.DB) error {
	if err := createTable(ctx, database, "project", `
		CREATE TABLE project (
			id UUID PRIMARY KEY,
			slug TEXT NOT NULL UNIQUE,
			human_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return err
	}

	if err := createTable(ctx, database, "agent", `
		CREATE TABLE agent (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES project(id),
			name TEXT NOT NULL,
			program TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL DEFAULT '',
			skills JSONB NOT NULL DEFAULT '[]',
			contact_policy JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (project_id, name)
		)`); err != nil {
		return err
	}

	if err := createTable(ctx, database, "mission", `
		CREATE TABLE mission (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES project(id),
			title TEXT NOT NULL,
			status TEXT NOT NULL,
			run_mode TEXT NOT NULL,
			owner TEXT NOT NULL DEFAULT '',
			context JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`); err != nil {
		return err
	}

	if err := createTable(ctx, database, "task_group", `
		CREATE TABLE task_group (
			id UUID PRIMARY KEY,
			mission_id UUID NOT NULL REFERENCES mission(id),
			title TEXT NOT NULL,
			kind TEXT NOT NULL,
			group_order INT NOT NULL,
			status TEXT NOT NULL,
			seq BIGSERIAL
		)`); err != nil {
		return err
	}

	if err := createTable(ctx, database, "task", `
		CREATE TABLE task (
			id UUID PRIMARY KEY,
			group_id UUID NOT NULL REFERENCES task_group(id),
			mission_id UUID REFERENCES mission(id),
			agent_id UUID NOT NULL,
			title TEXT NOT NULL,
			status TEXT NOT NULL,
			task_order INT NOT NULL,
			input JSONB,
			output JSONB,
			error TEXT NOT NULL DEFAULT '',
			seq BIGSERIAL
		)`); err != nil {
		return err
	}

	return createTable(ctx, database, "workflow_run", `
		CREATE TABLE workflow_run (
			run_id UUID PRIMARY KEY,
			mission_id UUID NOT NULL REFERENCES mission(id),
			mode TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			trace_uri TEXT NOT NULL DEFAULT ''
		)`)
}

func downCoreTables(ctx context.Context, database *db.DB) error {
	for _, name := range []string{"workflow_run", "task", "task_group", "mission", "agent", "project"} {
		if err := dropTable(ctx, database, name); err != nil {
			return err
		}
	}
	return nil
}

// 002_artifact_knowledge

func upArtifactKnowledge(ctx context.Context, database *db.DB) error {
	if err := createTable(ctx, database, "artifact", `
		CREATE TABLE artifact (
			id UUID PRIMARY KEY,
			mission_id UUID NOT NULL REFERENCES mission(id),
			task_id UUID,
			type TEXT NOT NULL,
			scope TEXT NOT NULL,
			path TEXT NOT NULL,
			version TEXT NOT NULL DEFAULT '1',
			sha256 TEXT NOT NULL,
			content_meta JSONB NOT NULL DEFAULT '{}',
			tags JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL
		)`); err != nil {
		return err
	}

	return createTable(ctx, database, "knowledge", `
		CREATE TABLE knowledge (
			id UUID PRIMARY KEY,
			artifact_id UUID NOT NULL REFERENCES artifact(id),
			version TEXT NOT NULL DEFAULT '1',
			sha256 TEXT NOT NULL DEFAULT '',
			scope TEXT NOT NULL,
			tags JSONB NOT NULL DEFAULT '[]',
			summary TEXT NOT NULL DEFAULT '',
			reusable BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`)
}

func downArtifactKnowledge(ctx context.Context, database *db.DB) error {
	for _, name := range []string{"knowledge", "artifact"} {
		if err := dropTable(ctx, database, name); err != nil {
			return err
		}
	}
	return nil
}

// 003_signals

func upSignals(ctx context.Context, database *db.DB) error {
	return createTable(ctx, database, "signal", `
		CREATE TABLE signal (
			id UUID PRIMARY KEY,
			project_id UUID NOT NULL REFERENCES project(id),
			mission_id UUID REFERENCES mission(id),
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		)`)
}

func downSignals(ctx context.Context, database *db.DB) error {
	return dropTable(ctx, database, "signal")
}

// 004_indexes

func upIndexes(ctx context.Context, database *db.DB) error {
	indexes := []struct {
		name string
		ddl  string
	}{
		{"idx_mission_project", "CREATE INDEX idx_mission_project ON mission (project_id)"},
		{"idx_task_group_mission", "CREATE INDEX idx_task_group_mission ON task_group (mission_id, group_order)"},
		{"idx_task_group_id", "CREATE INDEX idx_task_group_id ON task (group_id, task_order)"},
		{"idx_artifact_mission", "CREATE INDEX idx_artifact_mission ON artifact (mission_id)"},
		{"idx_workflow_run_mission", "CREATE INDEX idx_workflow_run_mission ON workflow_run (mission_id, started_at DESC)"},
		{"idx_signal_project_status", "CREATE INDEX idx_signal_project_status ON signal (project_id, status)"},
	}
	for _, idx := range indexes {
		if err := createIndex(ctx, database, idx.name, idx.ddl); err != nil {
			return err
		}
	}
	return nil
}

func downIndexes(ctx context.Context, database *db.DB) error {
	names := []string{
		"idx_signal_project_status",
		"idx_workflow_run_mission",
		"idx_artifact_mission",
		"idx_task_group_id",
		"idx_task_group_mission",
		"idx_mission_project",
	}
	for _, name := range names {
		if err := dropIndex(ctx, database, name); err != nil {
			return err
		}
	}
	return nil
}

// 005_knowledge_provenance: knowledge rows gained a pointer to the
// artifact they were distilled from after the table shipped, so the
// column arrives in its own step.

func upKnowledgeProvenance(ctx context.Context, database *db.DB) error {
	return addColumn(ctx, database, "knowledge", "source_artifact_id", "UUID REFERENCES artifact(id)")
}

func downKnowledgeProvenance(ctx context.Context, database *db.DB) error {
	return dropColumn(ctx, database, "knowledge", "source_artifact_id")
}
