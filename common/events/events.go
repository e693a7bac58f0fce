// Package events publishes live hub notifications (mission created,
// run finished, signal raised) to per-project channels. Two backends:
// memory for tests and single-binary setups, Redis pub/sub for
// deployments with external listeners. Publishing is best-effort
// everywhere; a lost event never fails the operation that caused it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
)

// Well-known event names
const (
	EventMissionCreated     = "mission_created"
	EventMissionRunFinished = "mission_run_finished"
	EventSignalCreated      = "signal_created"
	EventSignalTransitioned = "signal_transitioned"
)

// Event is one live notification
type Event struct {
	TS        time.Time    `json:"ts"`
	Event     string       `json:"event"`
	Project   string       `json:"project"`
	MissionID string       `json:"mission_id,omitempty"`
	RunID     string       `json:"run_id,omitempty"`
	Payload   document.Doc `json:"payload,omitempty"`
}

// New builds an event stamped with the current time
func New(name, project string) Event {
	return Event{
		TS:      time.Now().UTC(),
		Event:   name,
		Project: project,
	}
}

// Encode serializes the event for the wire
func (e Event) Encode() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return raw, nil
}

// ChannelFor names the pub/sub channel for a project
func ChannelFor(project string) string {
	return "missions:events:" + project
}

// Publisher fans hub events out to listeners
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
