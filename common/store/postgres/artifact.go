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
)

// ArtifactRepository handles database operations for artifacts
type ArtifactRepository struct {
	db *db.DB
}

// NewArtifactRepository creates a new artifact repository
func NewArtifactRepository(database *db.DB) *ArtifactRepository {
	return &ArtifactRepository{db: database}
}

// Create inserts a new artifact
func (r *ArtifactRepository) Create(ctx context.Context, artifact *models.Artifact) error {
	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO artifact (id, mission_id, task_id, type, scope, path, version, sha256, content_meta, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		artifact.ID,
		artifact.MissionID,
		artifact.TaskID,
		artifact.Type,
		artifact.Scope,
		artifact.Path,
		artifact.Version,
		artifact.SHA256,
		artifact.ContentMeta,
		artifact.Tags,
		artifact.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create artifact: %w", err)
	}

	return nil
}

// GetByID retrieves an artifact by its ID
func (r *ArtifactRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	query := `
		SELECT id, mission_id, task_id, type, scope, path, version, sha256, content_meta, tags, created_at
		FROM artifact
		WHERE id = $1
	`

	artifact := &models.Artifact{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&artifact.ID,
		&artifact.MissionID,
		&artifact.TaskID,
		&artifact.Type,
		&artifact.Scope,
		&artifact.Path,
		&artifact.Version,
		&artifact.SHA256,
		&artifact.ContentMeta,
		&artifact.Tags,
		&artifact.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeArtifactNotFound, "artifact not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact: %w", err)
	}

	return artifact, nil
}

// ListByMission retrieves a mission's artifacts oldest-first
func (r *ArtifactRepository) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*models.Artifact, error) {
	query := `
		SELECT id, mission_id, task_id, type, scope, path, version, sha256, content_meta, tags, created_at
		FROM artifact
		WHERE mission_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*models.Artifact
	for rows.Next() {
		artifact := &models.Artifact{}
		err := rows.Scan(
			&artifact.ID,
			&artifact.MissionID,
			&artifact.TaskID,
			&artifact.Type,
			&artifact.Scope,
			&artifact.Path,
			&artifact.Version,
			&artifact.SHA256,
			&artifact.ContentMeta,
			&artifact.Tags,
			&artifact.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		artifacts = append(artifacts, artifact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating artifacts: %w", err)
	}

	return artifacts, nil
}
