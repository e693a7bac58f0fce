package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

type missionRepo struct {
	s *state
}

func (r *missionRepo) Create(ctx context.Context, mission *models.Mission) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if mission.ID == uuid.Nil {
		mission.ID = uuid.New()
	}
	r.s.missions[mission.ID] = cloneMission(mission)
	return nil
}

func (r *missionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Mission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.missions[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeMissionNotFound, "mission not found")
	}
	return cloneMission(m), nil
}

func (r *missionRepo) ListByProject(ctx context.Context, projectID uuid.UUID, limit int) ([]*models.Mission, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Mission
	for _, m := range r.s.missions {
		if m.ProjectID == projectID {
			out = append(out, cloneMission(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *missionRepo) Summaries(ctx context.Context, limit int) ([]*models.MissionSummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	groupCount := make(map[uuid.UUID]int)
	for _, g := range r.s.groups {
		groupCount[g.MissionID]++
	}
	artifactCount := make(map[uuid.UUID]int)
	for _, a := range r.s.artifacts {
		artifactCount[a.MissionID]++
	}

	out := make([]*models.MissionSummary, 0, len(r.s.missions))
	for _, m := range r.s.missions {
		out = append(out, &models.MissionSummary{
			ID:             m.ID,
			Title:          m.Title,
			Status:         m.Status,
			RunMode:        m.RunMode,
			TaskGroupCount: groupCount[m.ID],
			ArtifactCount:  artifactCount[m.ID],
			UpdatedAt:      m.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *missionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.missions[id]
	if !ok {
		return apperr.NotFound(apperr.CodeMissionNotFound, "mission not found")
	}
	m.Status = status
	m.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *missionRepo) UpdateContext(ctx context.Context, id uuid.UUID, context document.Doc) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.missions[id]
	if !ok {
		return apperr.NotFound(apperr.CodeMissionNotFound, "mission not found")
	}
	m.Context = context.Clone()
	m.UpdatedAt = time.Now().UTC()
	return nil
}

type groupRepo struct {
	s *state
}

func (r *groupRepo) Create(ctx context.Context, group *models.TaskGroup) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	r.s.groups[group.ID] = cloneGroup(group)
	r.s.groupSeq[group.ID] = r.s.nextSeq()
	return nil
}

func (r *groupRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TaskGroup, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	g, ok := r.s.groups[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeGroupNotFound, "task group not found")
	}
	return cloneGroup(g), nil
}

func (r *groupRepo) ListByMission(ctx context.Context, missionID uuid.UUID) ([]*models.TaskGroup, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.TaskGroup
	for _, g := range r.s.groups {
		if g.MissionID == missionID {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return r.s.groupSeq[out[i].ID] < r.s.groupSeq[out[j].ID]
	})
	return out, nil
}

func (r *groupRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	g, ok := r.s.groups[id]
	if !ok {
		return apperr.NotFound(apperr.CodeGroupNotFound, "task group not found")
	}
	g.Status = status
	return nil
}

type taskRepo struct {
	s *state
}

func (r *taskRepo) Create(ctx context.Context, task *models.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	r.s.tasks[task.ID] = cloneTask(task)
	r.s.taskSeq[task.ID] = r.s.nextSeq()
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.tasks[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeTaskNotFound, "task not found")
	}
	return cloneTask(t), nil
}

func (r *taskRepo) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]*models.Task, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Task
	for _, t := range r.s.tasks {
		if t.GroupID == groupID {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return r.s.taskSeq[out[i].ID] < r.s.taskSeq[out[j].ID]
	})
	return out, nil
}

func (r *taskRepo) Update(ctx context.Context, task *models.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tasks[task.ID]
	if !ok {
		return apperr.NotFound(apperr.CodeTaskNotFound, "task not found")
	}
	t.Status = task.Status
	t.Input = task.Input.Clone()
	t.Output = task.Output.Clone()
	t.Error = task.Error
	return nil
}
