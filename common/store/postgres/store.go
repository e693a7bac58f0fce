// Package postgres is the production store backend on pgx. Each
// repository speaks plain SQL against the singular-named tables laid
// down by common/migrate.
package postgres

import (
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/db"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
)

// New wires every repository to the shared connection pool
func New(database *db.DB) *store.Store {
	return &store.Store{
		Projects:  NewProjectRepository(database),
		Agents:    NewAgentRepository(database),
		Missions:  NewMissionRepository(database),
		Groups:    NewTaskGroupRepository(database),
		Tasks:     NewTaskRepository(database),
		Artifacts: NewArtifactRepository(database),
		Knowledge: NewKnowledgeRepository(database),
		Runs:      NewRunRepository(database),
		Signals:   NewSignalRepository(database),
	}
}
