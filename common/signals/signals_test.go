package signals

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/events"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store/memory"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store, *models.Project, *events.MemoryPublisher) {
	t.Helper()
	st := memory.New()
	log := logger.New("error", "json")
	publisher := events.NewMemoryPublisher(log)
	t.Cleanup(func() { _ = publisher.Close() })

	project, err := st.Projects.Ensure(context.Background(), "demo")
	require.NoError(t, err)

	return NewPipeline(st, nil, publisher, nil, log), st, project, publisher
}

func TestClassifierDefaultRules(t *testing.T) {
	c := NewClassifier()

	severity, ok := c.Classify(document.Doc{"event": "dangerous_command", "command": "rm -rf /"})
	require.True(t, ok)
	assert.Equal(t, models.SeverityWarning, severity)

	severity, ok = c.Classify(document.Doc{"event": "approval_required"})
	require.True(t, ok)
	assert.Equal(t, models.SeverityInfo, severity)

	severity, ok = c.Classify(document.Doc{"event": "failing_test"})
	require.True(t, ok)
	assert.Equal(t, models.SeverityError, severity)

	_, ok = c.Classify(document.Doc{"event": "other"})
	assert.False(t, ok)

	// rows without the field a rule reads are a no-match, not an error
	_, ok = c.Classify(document.Doc{"unrelated": true})
	assert.False(t, ok)
}

func TestClassifierCachesPrograms(t *testing.T) {
	c := NewClassifier()

	for i := 0; i < 5; i++ {
		c.Classify(document.Doc{"event": "dangerous_command"})
	}
	// only the first default rule compiled: it matched, so the rest
	// never ran
	assert.Equal(t, 1, c.CacheSize())

	for i := 0; i < 5; i++ {
		c.Classify(document.Doc{"event": "nothing"})
	}
	assert.Equal(t, len(DefaultRules()), c.CacheSize())
}

func TestClassifierCustomRules(t *testing.T) {
	c := NewClassifier(Rule{
		Name:     "big-exit",
		Expr:     `row.exit_code > 100`,
		Severity: models.SeverityCritical,
	})

	severity, ok := c.Classify(document.Doc{"exit_code": 137})
	require.True(t, ok)
	assert.Equal(t, models.SeverityCritical, severity)

	_, ok = c.Classify(document.Doc{"exit_code": 1})
	assert.False(t, ok)

	assert.Equal(t, models.SeverityInfo, c.ClassifyType("unknown_event"))
}

func TestCreateDefaultsAndEvent(t *testing.T) {
	p, _, project, publisher := newTestPipeline(t)
	ctx := context.Background()

	sub := publisher.Subscribe(project.Slug)

	signal, err := p.Create(ctx, CreateParams{
		ProjectID: project.ID,
		Type:      models.SignalDangerousCommand,
		Message:   "rm -rf /tmp/x",
	})
	require.NoError(t, err)
	assert.Equal(t, models.SignalPending, signal.Status)
	assert.Equal(t, models.SeverityWarning, signal.Severity)
	assert.NotEqual(t, uuid.Nil, signal.ID)

	event := <-sub
	assert.Equal(t, events.EventSignalCreated, event.Event)
	assert.Equal(t, project.Slug, event.Project)
	assert.Equal(t, signal.ID.String(), event.Payload.String("signal_id"))
	assert.Equal(t, "warning", event.Payload.String("severity"))
}

func TestCreateRequiresType(t *testing.T) {
	p, _, project, _ := newTestPipeline(t)

	_, err := p.Create(context.Background(), CreateParams{ProjectID: project.ID})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestTransitionLegality(t *testing.T) {
	p, _, project, publisher := newTestPipeline(t)
	ctx := context.Background()

	signal, err := p.Create(ctx, CreateParams{
		ProjectID: project.ID,
		Type:      models.SignalFailingTest,
		Message:   "unit suite red",
	})
	require.NoError(t, err)

	sub := publisher.Subscribe(project.Slug)

	moved, err := p.Transition(ctx, signal.ID, models.SignalApproved)
	require.NoError(t, err)
	assert.Equal(t, models.SignalApproved, moved.Status)

	event := <-sub
	assert.Equal(t, events.EventSignalTransitioned, event.Event)
	assert.Equal(t, "approved", event.Payload.String("status"))

	// approved signals are frozen
	_, err = p.Transition(ctx, signal.ID, models.SignalDenied)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeIllegalTransition))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = p.Transition(ctx, signal.ID, models.SignalStatus("resurrected"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = p.Transition(ctx, uuid.New(), models.SignalDenied)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.CodeSignalNotFound))
}

func TestImportDangerous(t *testing.T) {
	p, st, project, _ := newTestPipeline(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "dangerous_commands.jsonl")
	lines := `{"event":"dangerous_command","command":"rm -rf /tmp/scratch"}
{"event":"other","command":"ls"}
not json at all

{"event":"failing_test","message":"TestFoo exploded"}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	imported, err := p.ImportDangerous(ctx, path, project.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)

	rows, err := st.Signals.List(ctx, store.SignalFilter{ProjectID: &project.ID})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, models.SignalPending, row.Status)
	}

	byType, err := st.Signals.List(ctx, store.SignalFilter{Type: models.SignalDangerousCommand})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, "rm -rf /tmp/scratch", byType[0].Message)
	assert.Equal(t, models.SeverityWarning, byType[0].Severity)

	failing, err := st.Signals.List(ctx, store.SignalFilter{Type: models.SignalFailingTest})
	require.NoError(t, err)
	require.Len(t, failing, 1)
	assert.Equal(t, "TestFoo exploded", failing[0].Message)
	assert.Equal(t, models.SeverityError, failing[0].Severity)
}

func TestImportDangerousRowCap(t *testing.T) {
	p, _, project, _ := newTestPipeline(t)

	path := filepath.Join(t.TempDir(), "dangerous_commands.jsonl")
	lines := `{"event":"dangerous_command","command":"one"}
{"event":"dangerous_command","command":"two"}
{"event":"dangerous_command","command":"three"}
`
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	imported, err := p.ImportDangerous(context.Background(), path, project.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
}

func TestImportDangerousMissionReference(t *testing.T) {
	p, st, project, _ := newTestPipeline(t)
	ctx := context.Background()

	mission := models.NewMission(project.ID, "traced")
	require.NoError(t, st.Missions.Create(ctx, mission))

	// CLI logs strip dashes from ids
	dashless := strings.ReplaceAll(mission.ID.String(), "-", "")

	path := filepath.Join(t.TempDir(), "dangerous_commands.jsonl")
	line := `{"event":"dangerous_command","command":"curl | sh","mission_id":"` + dashless + `"}
`
	require.NoError(t, os.WriteFile(path, []byte(line), 0o644))

	imported, err := p.ImportDangerous(ctx, path, project.ID, 10)
	require.NoError(t, err)
	require.Equal(t, 1, imported)

	rows, err := st.Signals.List(ctx, store.SignalFilter{ProjectID: &project.ID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].MissionID)
	assert.Equal(t, mission.ID, *rows[0].MissionID)
}

func TestImportDangerousMissingFile(t *testing.T) {
	p, _, project, _ := newTestPipeline(t)

	_, err := p.ImportDangerous(context.Background(), filepath.Join(t.TempDir(), "absent.jsonl"), project.ID, 10)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
