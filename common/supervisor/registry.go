package supervisor

import (
	"sync"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
)

// SessionMeta is the registry view of a live session
type SessionMeta struct {
	Session   *Session
	Role      string
	MissionID string
}

// Registry maps run ids to live stream sessions for attach flows.
// Process-local; it does not survive restarts.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]SessionMeta
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]SessionMeta)}
}

// Register records a live session under its run id
func (r *Registry) Register(runID string, sess *Session, role, missionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[runID] = SessionMeta{Session: sess, Role: role, MissionID: missionID}
}

// Deregister drops a session; unknown ids are a no-op
func (r *Registry) Deregister(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, runID)
}

// Lookup returns the session metadata for a run id
func (r *Registry) Lookup(runID string) (SessionMeta, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.sessions[runID]
	if !ok {
		return SessionMeta{}, apperr.NotFound(apperr.CodeSessionNotFound,
			"no live session for run "+runID)
	}
	return meta, nil
}

// RunIDs lists the registered run ids
func (r *Registry) RunIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}
