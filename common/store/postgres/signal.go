package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/db"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
)

// SignalRepository handles database operations for signals
type SignalRepository struct {
	db *db.DB
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(database *db.DB) *SignalRepository {
	return &SignalRepository{db: database}
}

// Create inserts a new signal
func (r *SignalRepository) Create(ctx context.Context, signal *models.Signal) error {
	if signal.ID == uuid.Nil {
		signal.ID = uuid.New()
	}
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO signal (id, project_id, mission_id, type, severity, status, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		signal.ID,
		signal.ProjectID,
		signal.MissionID,
		signal.Type,
		signal.Severity,
		signal.Status,
		signal.Message,
		signal.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}

	return nil
}

// GetByID retrieves a signal by its ID
func (r *SignalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Signal, error) {
	query := `
		SELECT id, project_id, mission_id, type, severity, status, message, created_at
		FROM signal
		WHERE id = $1
	`

	signal := &models.Signal{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&signal.ID,
		&signal.ProjectID,
		&signal.MissionID,
		&signal.Type,
		&signal.Severity,
		&signal.Status,
		&signal.Message,
		&signal.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeSignalNotFound, "signal not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}

	return signal, nil
}

// List retrieves signals newest-first, narrowed by the filter
func (r *SignalRepository) List(ctx context.Context, filter store.SignalFilter) ([]*models.Signal, error) {
	query := `
		SELECT id, project_id, mission_id, type, severity, status, message, created_at
		FROM signal
		WHERE 1=1
	`
	var args []any

	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		query += fmt.Sprintf(" AND project_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list signals: %w", err)
	}
	defer rows.Close()

	var signals []*models.Signal
	for rows.Next() {
		signal := &models.Signal{}
		err := rows.Scan(
			&signal.ID,
			&signal.ProjectID,
			&signal.MissionID,
			&signal.Type,
			&signal.Severity,
			&signal.Status,
			&signal.Message,
			&signal.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		signals = append(signals, signal)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signals: %w", err)
	}

	return signals, nil
}

// UpdateStatus sets the signal status
func (r *SignalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.SignalStatus) error {
	query := `
		UPDATE signal
		SET status = $2
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update signal status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound(apperr.CodeSignalNotFound, "signal not found")
	}

	return nil
}
