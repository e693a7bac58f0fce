package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/db"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

// RunRepository handles database operations for workflow runs
type RunRepository struct {
	db *db.DB
}

// NewRunRepository creates a new run repository
func NewRunRepository(database *db.DB) *RunRepository {
	return &RunRepository{db: database}
}

// Create inserts a new workflow run
func (r *RunRepository) Create(ctx context.Context, run *models.WorkflowRun) error {
	query := `
		INSERT INTO workflow_run (run_id, mission_id, mode, status, started_at, ended_at, trace_uri)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		run.RunID,
		run.MissionID,
		run.Mode,
		run.Status,
		run.StartedAt,
		run.EndedAt,
		run.TraceURI,
	)

	if err != nil {
		return fmt.Errorf("failed to create workflow run: %w", err)
	}

	return nil
}

// GetByID retrieves a workflow run by its ID
func (r *RunRepository) GetByID(ctx context.Context, runID uuid.UUID) (*models.WorkflowRun, error) {
	query := `
		SELECT run_id, mission_id, mode, status, started_at, ended_at, trace_uri
		FROM workflow_run
		WHERE run_id = $1
	`

	run := &models.WorkflowRun{}
	err := r.db.QueryRow(ctx, query, runID).Scan(
		&run.RunID,
		&run.MissionID,
		&run.Mode,
		&run.Status,
		&run.StartedAt,
		&run.EndedAt,
		&run.TraceURI,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeRunNotFound, "workflow run not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow run: %w", err)
	}

	return run, nil
}

// Update persists status, ended_at and trace_uri
func (r *RunRepository) Update(ctx context.Context, run *models.WorkflowRun) error {
	query := `
		UPDATE workflow_run
		SET status = $2, ended_at = $3, trace_uri = $4
		WHERE run_id = $1
	`

	result, err := r.db.Exec(ctx, query, run.RunID, run.Status, run.EndedAt, run.TraceURI)
	if err != nil {
		return fmt.Errorf("failed to update workflow run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeRunNotFound, "workflow run not found")
	}

	return nil
}

// LatestByMission returns the most recently started run for a mission
func (r *RunRepository) LatestByMission(ctx context.Context, missionID uuid.UUID) (*models.WorkflowRun, error) {
	query := `
		SELECT run_id, mission_id, mode, status, started_at, ended_at, trace_uri
		FROM workflow_run
		WHERE mission_id = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	run := &models.WorkflowRun{}
	err := r.db.QueryRow(ctx, query, missionID).Scan(
		&run.RunID,
		&run.MissionID,
		&run.Mode,
		&run.Status,
		&run.StartedAt,
		&run.EndedAt,
		&run.TraceURI,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeRunNotFound, "no runs recorded for mission")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest workflow run: %w", err)
	}

	return run, nil
}

// ListByMission retrieves a mission's runs newest-first
func (r *RunRepository) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*models.WorkflowRun, error) {
	query := `
		SELECT run_id, mission_id, mode, status, started_at, ended_at, trace_uri
		FROM workflow_run
		WHERE mission_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.Query(ctx, query, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.WorkflowRun
	for rows.Next() {
		run := &models.WorkflowRun{}
		err := rows.Scan(
			&run.RunID,
			&run.MissionID,
			&run.Mode,
			&run.Status,
			&run.StartedAt,
			&run.EndedAt,
			&run.TraceURI,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow runs: %w", err)
	}

	return runs, nil
}
