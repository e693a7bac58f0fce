package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

type projectRepo struct {
	s *state
}

func (r *projectRepo) Ensure(ctx context.Context, humanKey string) (*models.Project, error) {
	slug := models.SlugFromHumanKey(humanKey)
	if slug == "" {
		return nil, apperr.Validation(apperr.CodeInvalidPayload, "empty project key")
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, p := range r.s.projects {
		if p.Slug == slug {
			return cloneProject(p), nil
		}
	}

	p := &models.Project{
		ID:        uuid.New(),
		Slug:      slug,
		HumanKey:  humanKey,
		CreatedAt: time.Now().UTC(),
	}
	r.s.projects[p.ID] = p
	return cloneProject(p), nil
}

func (r *projectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.projects[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeProjectNotFound, "project not found")
	}
	return cloneProject(p), nil
}

func (r *projectRepo) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, p := range r.s.projects {
		if p.Slug == slug {
			return cloneProject(p), nil
		}
	}
	return nil, apperr.NotFound(apperr.CodeProjectNotFound, "project not found: "+slug)
}

func (r *projectRepo) List(ctx context.Context) ([]*models.Project, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*models.Project, 0, len(r.s.projects))
	for _, p := range r.s.projects {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

type agentRepo struct {
	s *state
}

func (r *agentRepo) Create(ctx context.Context, agent *models.Agent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.agents {
		if a.ProjectID == agent.ProjectID && a.Name == agent.Name {
			return apperr.Conflict(apperr.CodeInvalidPayload,
				"agent already exists: "+agent.Name)
		}
	}

	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = time.Now().UTC()
	}
	r.s.agents[agent.ID] = cloneAgent(agent)
	return nil
}

func (r *agentRepo) Ensure(ctx context.Context, projectID uuid.UUID, name string) (*models.Agent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.agents {
		if a.ProjectID == projectID && a.Name == name {
			return cloneAgent(a), nil
		}
	}

	a := &models.Agent{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	r.s.agents[a.ID] = a
	return cloneAgent(a), nil
}

func (r *agentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.agents[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeAgentNotFound, "agent not found")
	}
	return cloneAgent(a), nil
}

func (r *agentRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Agent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Agent
	for _, a := range r.s.agents {
		if a.ProjectID == projectID {
			out = append(out, cloneAgent(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
