package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

type runRepo struct {
	s *state
}

func (r *runRepo) Create(ctx context.Context, run *models.WorkflowRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if run.RunID == uuid.Nil {
		run.RunID = uuid.New()
	}
	r.s.runs[run.RunID] = cloneRun(run)
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, runID uuid.UUID) (*models.WorkflowRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	run, ok := r.s.runs[runID]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeRunNotFound, "workflow run not found")
	}
	return cloneRun(run), nil
}

func (r *runRepo) Update(ctx context.Context, run *models.WorkflowRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.runs[run.RunID]
	if !ok {
		return apperr.NotFound(apperr.CodeRunNotFound, "workflow run not found")
	}
	stored.Status = run.Status
	stored.TraceURI = run.TraceURI
	if run.EndedAt != nil {
		t := *run.EndedAt
		stored.EndedAt = &t
	}
	return nil
}

func (r *runRepo) LatestByMission(ctx context.Context, missionID uuid.UUID) (*models.WorkflowRun, error) {
	runs, err := r.ListByMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, apperr.NotFound(apperr.CodeRunNotFound, "no runs recorded for mission")
	}
	return runs[0], nil
}

func (r *runRepo) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*models.WorkflowRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.WorkflowRun
	for _, run := range r.s.runs {
		if run.MissionID == missionID {
			out = append(out, cloneRun(run))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}
