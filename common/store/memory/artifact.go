package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

type artifactRepo struct {
	s *state
}

func (r *artifactRepo) Create(ctx context.Context, artifact *models.Artifact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if artifact.ID == uuid.Nil {
		artifact.ID = uuid.New()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	r.s.artifacts[artifact.ID] = cloneArtifact(artifact)
	return nil
}

func (r *artifactRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Artifact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.artifacts[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeArtifactNotFound, "artifact not found")
	}
	return cloneArtifact(a), nil
}

func (r *artifactRepo) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*models.Artifact, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Artifact
	for _, a := range r.s.artifacts {
		if a.MissionID == missionID {
			out = append(out, cloneArtifact(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

type knowledgeRepo struct {
	s *state
}

func (r *knowledgeRepo) Create(ctx context.Context, knowledge *models.Knowledge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

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
	r.s.knowledge[knowledge.ID] = cloneKnowledge(knowledge)
	return nil
}

func (r *knowledgeRepo) ListByArtifact(ctx context.Context, artifactID uuid.UUID) ([]*models.Knowledge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Knowledge
	for _, k := range r.s.knowledge {
		if k.ArtifactID == artifactID {
			out = append(out, cloneKnowledge(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *knowledgeRepo) List(ctx context.Context, limit int) ([]*models.Knowledge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*models.Knowledge, 0, len(r.s.knowledge))
	for _, k := range r.s.knowledge {
		out = append(out, cloneKnowledge(k))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
