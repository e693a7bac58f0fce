// Package memory is the in-process store backend. It backs unit
// tests and single-binary setups where Postgres is not available.
// Rows are copied on the way in and out so callers never share
// memory with the store, matching the behavior of a real database
// round trip.
package memory

import (
	"sync"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
)

// state is the shared in-memory database
type state struct {
	mu  sync.RWMutex
	seq int64 // insertion order tiebreak for groups and tasks

	projects  map[uuid.UUID]*models.Project
	agents    map[uuid.UUID]*models.Agent
	missions  map[uuid.UUID]*models.Mission
	groups    map[uuid.UUID]*models.TaskGroup
	groupSeq  map[uuid.UUID]int64
	tasks     map[uuid.UUID]*models.Task
	taskSeq   map[uuid.UUID]int64
	artifacts map[uuid.UUID]*models.Artifact
	knowledge map[uuid.UUID]*models.Knowledge
	runs      map[uuid.UUID]*models.WorkflowRun
	signals   map[uuid.UUID]*models.Signal
}

func (s *state) nextSeq() int64 {
	s.seq++
	return s.seq
}

// New creates an empty in-memory store
func New() *store.Store {
	s := &state{
		projects:  make(map[uuid.UUID]*models.Project),
		agents:    make(map[uuid.UUID]*models.Agent),
		missions:  make(map[uuid.UUID]*models.Mission),
		groups:    make(map[uuid.UUID]*models.TaskGroup),
		groupSeq:  make(map[uuid.UUID]int64),
		tasks:     make(map[uuid.UUID]*models.Task),
		taskSeq:   make(map[uuid.UUID]int64),
		artifacts: make(map[uuid.UUID]*models.Artifact),
		knowledge: make(map[uuid.UUID]*models.Knowledge),
		runs:      make(map[uuid.UUID]*models.WorkflowRun),
		signals:   make(map[uuid.UUID]*models.Signal),
	}
	return &store.Store{
		Projects:  &projectRepo{s},
		Agents:    &agentRepo{s},
		Missions:  &missionRepo{s},
		Groups:    &groupRepo{s},
		Tasks:     &taskRepo{s},
		Artifacts: &artifactRepo{s},
		Knowledge: &knowledgeRepo{s},
		Runs:      &runRepo{s},
		Signals:   &signalRepo{s},
	}
}

// Row copies. Shallow struct copy plus deep copies of the documents
// and slices that callers might mutate.

func cloneProject(p *models.Project) *models.Project {
	c := *p
	return &c
}

func cloneAgent(a *models.Agent) *models.Agent {
	c := *a
	c.Skills = append([]string(nil), a.Skills...)
	c.ContactPolicy = a.ContactPolicy.Clone()
	return &c
}

func cloneMission(m *models.Mission) *models.Mission {
	c := *m
	c.Context = m.Context.Clone()
	return &c
}

func cloneGroup(g *models.TaskGroup) *models.TaskGroup {
	c := *g
	return &c
}

func cloneTask(t *models.Task) *models.Task {
	c := *t
	if t.MissionID != nil {
		id := *t.MissionID
		c.MissionID = &id
	}
	c.Input = t.Input.Clone()
	c.Output = t.Output.Clone()
	return &c
}

func cloneArtifact(a *models.Artifact) *models.Artifact {
	c := *a
	if a.TaskID != nil {
		id := *a.TaskID
		c.TaskID = &id
	}
	c.ContentMeta = a.ContentMeta.Clone()
	c.Tags = append([]string(nil), a.Tags...)
	return &c
}

func cloneKnowledge(k *models.Knowledge) *models.Knowledge {
	c := *k
	if k.SourceArtifactID != nil {
		id := *k.SourceArtifactID
		c.SourceArtifactID = &id
	}
	c.Tags = append([]string(nil), k.Tags...)
	return &c
}

func cloneRun(r *models.WorkflowRun) *models.WorkflowRun {
	c := *r
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return &c
}

func cloneSignal(sig *models.Signal) *models.Signal {
	c := *sig
	if sig.MissionID != nil {
		id := *sig.MissionID
		c.MissionID = &id
	}
	return &c
}
