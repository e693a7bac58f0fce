package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/db"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

// MissionRepository handles database operations for missions
type MissionRepository struct {
	db *db.DB
}

// NewMissionRepository creates a new mission repository
func NewMissionRepository(database *db.DB) *MissionRepository {
	return &MissionRepository{db: database}
}

// Create inserts a new mission
func (r *MissionRepository) Create(ctx context.Context, mission *models.Mission) error {
	query := `
		INSERT INTO mission (id, project_id, title, status, run_mode, owner, context, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		mission.ID,
		mission.ProjectID,
		mission.Title,
		mission.Status,
		mission.RunMode,
		mission.Owner,
		mission.Context,
		mission.CreatedAt,
		mission.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create mission: %w", err)
	}

	return nil
}

// GetByID retrieves a mission by its ID
func (r *MissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	query := `
		SELECT id, project_id, title, status, run_mode, owner, context, created_at, updated_at
		FROM mission
		WHERE id = $1
	`

	mission := &models.Mission{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&mission.ID,
		&mission.ProjectID,
		&mission.Title,
		&mission.Status,
		&mission.RunMode,
		&mission.Owner,
		&mission.Context,
		&mission.CreatedAt,
		&mission.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeMissionNotFound, "mission not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission: %w", err)
	}

	return mission, nil
}

// ListByProject retrieves missions for a project, newest first
func (r *MissionRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.Mission, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, project_id, title, status, run_mode, owner, context, created_at, updated_at
		FROM mission
		WHERE project_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	var missions []*models.Mission
	for rows.Next() {
		mission := &models.Mission{}
		err := rows.Scan(
			&mission.ID,
			&mission.ProjectID,
			&mission.Title,
			&mission.Status,
			&mission.RunMode,
			&mission.Owner,
			&mission.Context,
			&mission.CreatedAt,
			&mission.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, mission)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating missions: %w", err)
	}

	return missions, nil
}

// Summaries lists missions newest-first with group and artifact counts
func (r *MissionRepository) Summaries(ctx context.Context, limit int) ([]*models.MissionSummary, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT m.id, m.title, m.status, m.run_mode,
		       (SELECT COUNT(*) FROM task_group g WHERE g.mission_id = m.id),
		       (SELECT COUNT(*) FROM artifact a WHERE a.mission_id = m.id),
		       m.updated_at
		FROM mission m
		ORDER BY m.updated_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list mission summaries: %w", err)
	}
	defer rows.Close()

	var summaries []*models.MissionSummary
	for rows.Next() {
		summary := &models.MissionSummary{}
		err := rows.Scan(
			&summary.ID,
			&summary.Title,
			&summary.Status,
			&summary.RunMode,
			&summary.TaskGroupCount,
			&summary.ArtifactCount,
			&summary.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission summary: %w", err)
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mission summaries: %w", err)
	}

	return summaries, nil
}

// UpdateStatus sets the mission status and bumps updated_at
func (r *MissionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	query := `
		UPDATE mission
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update mission status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeMissionNotFound, "mission not found")
	}

	return nil
}

// UpdateContext replaces the mission context document
func (r *MissionRepository) UpdateContext(ctx context.Context, id uuid.UUID, context document.Doc) error {
	query := `
		UPDATE mission
		SET context = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, context)
	if err != nil {
		return fmt.Errorf("failed to update mission context: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeMissionNotFound, "mission not found")
	}

	return nil
}
