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

// ProjectRepository handles database operations for projects
type ProjectRepository struct {
	db *db.DB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(database *db.DB) *ProjectRepository {
	return &ProjectRepository{db: database}
}

// Ensure returns the project for a human key, creating it when absent.
// The upsert keeps repeat calls idempotent under concurrency.
func (r *ProjectRepository) Ensure(ctx context.Context, humanKey string) (*models.Project, error) {
	slug := models.SlugFromHumanKey(humanKey)
	if slug == "" {
		return nil, apperr.Validation(apperr.CodeInvalidPayload, "empty project key")
	}

	query := `
		INSERT INTO project (id, slug, human_key, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slug) DO UPDATE SET slug = EXCLUDED.slug
		RETURNING id, slug, human_key, created_at
	`

	project := &models.Project{}
	err := r.db.QueryRow(ctx, query, uuid.New(), slug, humanKey, time.Now().UTC()).Scan(
		&project.ID,
		&project.Slug,
		&project.HumanKey,
		&project.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure project: %w", err)
	}

	return project, nil
}

// GetByID retrieves a project by its ID
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `
		SELECT id, slug, human_key, created_at
		FROM project
		WHERE id = $1
	`

	project := &models.Project{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.Slug,
		&project.HumanKey,
		&project.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeProjectNotFound, "project not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return project, nil
}

// GetBySlug retrieves a project by its slug
func (r *ProjectRepository) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	query := `
		SELECT id, slug, human_key, created_at
		FROM project
		WHERE slug = $1
	`

	project := &models.Project{}
	err := r.db.QueryRow(ctx, query, slug).Scan(
		&project.ID,
		&project.Slug,
		&project.HumanKey,
		&project.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeProjectNotFound, "project not found: "+slug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project by slug: %w", err)
	}

	return project, nil
}

// List retrieves all projects ordered by slug
func (r *ProjectRepository) List(ctx context.Context) ([]*models.Project, error) {
	query := `
		SELECT id, slug, human_key, created_at
		FROM project
		ORDER BY slug ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project := &models.Project{}
		err := rows.Scan(
			&project.ID,
			&project.Slug,
			&project.HumanKey,
			&project.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}
