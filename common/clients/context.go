package clients

import "context"

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// MissionIDKey is the context key for the mission id (X-Mission-ID header)
	MissionIDKey contextKey = "mission-id"

	// RunIDKey is the context key for the run id (X-Run-ID header)
	RunIDKey contextKey = "run-id"
)

// WithMissionID adds a mission id to the context; outgoing requests
// carry it as X-Mission-ID
func WithMissionID(ctx context.Context, missionID string) context.Context {
	return context.WithValue(ctx, MissionIDKey, missionID)
}

// GetMissionID retrieves the mission id from context
func GetMissionID(ctx context.Context) (string, bool) {
	missionID, ok := ctx.Value(MissionIDKey).(string)
	return missionID, ok && missionID != ""
}

// WithRunID adds a run id to the context; outgoing requests carry it
// as X-Run-ID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID retrieves the run id from context
func GetRunID(ctx context.Context) (string, bool) {
	runID, ok := ctx.Value(RunIDKey).(string)
	return runID, ok && runID != ""
}
