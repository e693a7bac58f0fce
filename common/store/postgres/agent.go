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

// AgentRepository handles database operations for agents
type AgentRepository struct {
	db *db.DB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(database *db.DB) *AgentRepository {
	return &AgentRepository{db: database}
}

// Create inserts a new agent
func (r *AgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO agent (id, project_id, name, program, model, skills, contact_policy, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		ctx,
		query,
		agent.ID,
		agent.ProjectID,
		agent.Name,
		agent.Program,
		agent.Model,
		agent.Skills,
		agent.ContactPolicy,
		agent.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

// Ensure returns the agent named name in the project, creating a bare
// one when absent
func (r *AgentRepository) Ensure(ctx context.Context, projectID uuid.UUID, name string) (*models.Agent, error) {
	query := `
		INSERT INTO agent (id, project_id, name, program, model, skills, contact_policy, created_at)
		VALUES ($1, $2, $3, '', '', '[]', '{}', $4)
		ON CONFLICT (project_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, project_id, name, program, model, skills, contact_policy, created_at
	`

	agent := &models.Agent{}
	err := r.db.QueryRow(ctx, query, uuid.New(), projectID, name, time.Now().UTC()).Scan(
		&agent.ID,
		&agent.ProjectID,
		&agent.Name,
		&agent.Program,
		&agent.Model,
		&agent.Skills,
		&agent.ContactPolicy,
		&agent.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure agent: %w", err)
	}

	return agent, nil
}

// GetByID retrieves an agent by its ID
func (r *AgentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	query := `
		SELECT id, project_id, name, program, model, skills, contact_policy, created_at
		FROM agent
		WHERE id = $1
	`

	agent := &models.Agent{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&agent.ID,
		&agent.ProjectID,
		&agent.Name,
		&agent.Program,
		&agent.Model,
		&agent.Skills,
		&agent.ContactPolicy,
		&agent.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound(apperr.CodeAgentNotFound, "agent not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	return agent, nil
}

// ListByProject retrieves all agents in a project ordered by name
func (r *AgentRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Agent, error) {
	query := `
		SELECT id, project_id, name, program, model, skills, contact_policy, created_at
		FROM agent
		WHERE project_id = $1
		ORDER BY name ASC
	`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		agent := &models.Agent{}
		err := rows.Scan(
			&agent.ID,
			&agent.ProjectID,
			&agent.Name,
			&agent.Program,
			&agent.Model,
			&agent.Skills,
			&agent.ContactPolicy,
			&agent.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agents: %w", err)
	}

	return agents, nil
}
