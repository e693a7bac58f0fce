package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/db"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

// KnowledgeRepository handles database operations for knowledge rows
type KnowledgeRepository struct {
	db *db.DB
}

// NewKnowledgeRepository creates a new knowledge repository
func NewKnowledgeRepository(database *db.DB) *KnowledgeRepository {
	return &KnowledgeRepository{db: database}
}

// Create inserts a new knowledge row
func (r *KnowledgeRepository) Create(ctx context.Context, knowledge *models.Knowledge) error {
	if knowledge.ID == uuid.Nil {
		knowledge.ID = uuid.New()
	}
	now := time.Now().UTC()
	if knowledge.CreatedAt.IsZero() {
		knowledge.CreatedAt = now
	}
	if knowledge.UpdatedAt.IsZero() {
		knowledge.UpdatedAt = now
	}

	query := `
		INSERT INTO knowledge (id, artifact_id, source_artifact_id, version, sha256, scope, tags, summary, reusable, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		knowledge.ID,
		knowledge.ArtifactID,
		knowledge.SourceArtifactID,
		knowledge.Version,
		knowledge.SHA256,
		knowledge.Scope,
		knowledge.Tags,
		knowledge.Summary,
		knowledge.Reusable,
		knowledge.CreatedAt,
		knowledge.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create knowledge: %w", err)
	}

	return nil
}

// ListByArtifact retrieves knowledge derived from an artifact
func (r *KnowledgeRepository) ListByArtifact(ctx context.Context, artifactID uuid.UUID) ([]*models.Knowledge, error) {
	query := `
		SELECT id, artifact_id, source_artifact_id, version, sha256, scope, tags, summary, reusable, created_at, updated_at
		FROM knowledge
		WHERE artifact_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge by artifact: %w", err)
	}
	defer rows.Close()

	var items []*models.Knowledge
	for rows.Next() {
		knowledge := &models.Knowledge{}
		err := rows.Scan(
			&knowledge.ID,
			&knowledge.ArtifactID,
			&knowledge.SourceArtifactID,
			&knowledge.Version,
			&knowledge.SHA256,
			&knowledge.Scope,
			&knowledge.Tags,
			&knowledge.Summary,
			&knowledge.Reusable,
			&knowledge.CreatedAt,
			&knowledge.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge: %w", err)
		}
		items = append(items, knowledge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge: %w", err)
	}

	return items, nil
}

// List retrieves knowledge rows newest-first
func (r *KnowledgeRepository) List(ctx context.Context, limit int) ([]*models.Knowledge, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, artifact_id, source_artifact_id, version, sha256, scope, tags, summary, reusable, created_at, updated_at
		FROM knowledge
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge: %w", err)
	}
	defer rows.Close()

	var items []*models.Knowledge
	for rows.Next() {
		knowledge := &models.Knowledge{}
		err := rows.Scan(
			&knowledge.ID,
			&knowledge.ArtifactID,
			&knowledge.SourceArtifactID,
			&knowledge.Version,
			&knowledge.SHA256,
			&knowledge.Scope,
			&knowledge.Tags,
			&knowledge.Summary,
			&knowledge.Reusable,
			&knowledge.CreatedAt,
			&knowledge.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan knowledge: %w", err)
		}
		items = append(items, knowledge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating knowledge: %w", err)
	}

	return items, nil
}
