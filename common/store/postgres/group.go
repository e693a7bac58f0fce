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

// TaskGroupRepository handles database operations for task groups
type TaskGroupRepository struct {
	db *db.DB
}

// NewTaskGroupRepository creates a new task group repository
func NewTaskGroupRepository(database *db.DB) *TaskGroupRepository {
	return &TaskGroupRepository{db: database}
}

// Create inserts a new task group
func (r *TaskGroupRepository) Create(ctx context.Context, group *models.TaskGroup) error {
	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}

	query := `
		INSERT INTO task_group (id, mission_id, title, kind, group_order, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		group.ID,
		group.MissionID,
		group.Title,
		group.Kind,
		group.Order,
		group.Status,
	)

	if err != nil {
		return fmt.Errorf("failed to create task group: %w", err)
	}

	return nil
}

// GetByID retrieves a task group by its ID
func (r *TaskGroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.TaskGroup, error) {
	query := `
		SELECT id, mission_id, title, kind, group_order, status
		FROM task_group
		WHERE id = $1
	`

	group := &models.TaskGroup{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&group.ID,
		&group.MissionID,
		&group.Title,
		&group.Kind,
		&group.Order,
		&group.Status,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeGroupNotFound, "task group not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task group: %w", err)
	}

	return group, nil
}

// ListByMission retrieves a mission's groups ordered by group order,
// ties broken by insertion
func (r *TaskGroupRepository) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*models.TaskGroup, error) {
	query := `
		SELECT id, mission_id, title, kind, group_order, status
		FROM task_group
		WHERE mission_id = $1
		ORDER BY group_order ASC, seq ASC
	`

	rows, err := r.db.Query(ctx, query, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list task groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.TaskGroup
	for rows.Next() {
		group := &models.TaskGroup{}
		err := rows.Scan(
			&group.ID,
			&group.MissionID,
			&group.Title,
			&group.Kind,
			&group.Order,
			&group.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task group: %w", err)
		}
		groups = append(groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task groups: %w", err)
	}

	return groups, nil
}

// UpdateStatus sets the group status
func (r *TaskGroupRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	query := `
		UPDATE task_group
		SET status = $2
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update task group status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeGroupNotFound, "task group not found")
	}

	return nil
}
