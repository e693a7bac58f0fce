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

// TaskRepository handles database operations for tasks
type TaskRepository struct {
	db *db.DB
}

// NewTaskRepository creates a new task repository
func NewTaskRepository(database *db.DB) *TaskRepository {
	return &TaskRepository{db: database}
}

// Create inserts a new task
func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}

	query := `
		INSERT INTO task (id, group_id, mission_id, agent_id, title, status, task_order, input, output, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		task.ID,
		task.GroupID,
		task.MissionID,
		task.AgentID,
		task.Title,
		task.Status,
		task.Order,
		task.Input,
		task.Output,
		task.Error,
	)

	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

// GetByID retrieves a task by its ID
func (r *TaskRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	query := `
		SELECT id, group_id, mission_id, agent_id, title, status, task_order, input, output, error
		FROM task
		WHERE id = $1
	`

	task := &models.Task{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&task.ID,
		&task.GroupID,
		&task.MissionID,
		&task.AgentID,
		&task.Title,
		&task.Status,
		&task.Order,
		&task.Input,
		&task.Output,
		&task.Error,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeTaskNotFound, "task not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	return task, nil
}

// ListByGroup retrieves a group's tasks ordered by task order, ties
// broken by insertion
func (r *TaskRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*models.Task, error) {
	query := `
		SELECT id, group_id, mission_id, agent_id, title, status, task_order, input, output, error
		FROM task
		WHERE group_id = $1
		ORDER BY task_order ASC, seq ASC
	`

	rows, err := r.db.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task := &models.Task{}
		err := rows.Scan(
			&task.ID,
			&task.GroupID,
			&task.MissionID,
			&task.AgentID,
			&task.Title,
			&task.Status,
			&task.Order,
			&task.Input,
			&task.Output,
			&task.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}

	return tasks, nil
}

// Update persists the mutable task fields
func (r *TaskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE task
		SET status = $2, input = $3, output = $4, error = $5
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, task.ID, task.Status, task.Input, task.Output, task.Error)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeTaskNotFound, "task not found")
	}

	return nil
}
