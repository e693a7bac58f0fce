package signals

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/events"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/logger"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/telemetry"
)

// defaultImportRows caps how many JSONL rows one import call scans
// when the caller does not say
const defaultImportRows = 1000

// Pipeline creates, lists and reviews signals. Event publishing and
// metrics are best-effort: a down broker never fails a signal write.
type Pipeline struct {
	store      *store.Store
	classifier *Classifier
	publisher  events.Publisher
	metrics    *telemetry.Metrics
	log        *logger.Logger
}

// NewPipeline wires the pipeline; publisher and metrics may be nil
func NewPipeline(st *store.Store, classifier *Classifier, publisher events.Publisher, metrics *telemetry.Metrics, log *logger.Logger) *Pipeline {
	if classifier == nil {
		classifier = NewClassifier()
	}
	return &Pipeline{
		store:      st,
		classifier: classifier,
		publisher:  publisher,
		metrics:    metrics,
		log:        log,
	}
}

// CreateParams describes a signal to record. Empty severity is
// resolved by the classifier from the type; empty status means pending.
type CreateParams struct {
	ProjectID uuid.UUID
	MissionID *uuid.UUID
	Type      string
	Severity  models.Severity
	Status    models.SignalStatus
	Message   string
}

// Create records a signal
func (p *Pipeline) Create(ctx context.Context, params CreateParams) (*models.Signal, error) {
	if params.Type == "" {
		return nil, apperr.Validation(apperr.CodeInvalidPayload, "signal type is required")
	}

	severity := params.Severity
	if severity == "" {
		severity = p.classifier.ClassifyType(params.Type)
	}
	status := params.Status
	if status == "" {
		status = models.SignalPending
	}

	signal := &models.Signal{
		ID:        uuid.New(),
		ProjectID: params.ProjectID,
		MissionID: params.MissionID,
		Type:      params.Type,
		Severity:  severity,
		Status:    status,
		Message:   params.Message,
		CreatedAt: time.Now().UTC(),
	}

	if err := p.store.Signals.Create(ctx, signal); err != nil {
		return nil, fmt.Errorf("failed to create signal: %w", err)
	}

	p.metrics.SignalCreated(signal.Type)
	p.publish(ctx, events.EventSignalCreated, signal, document.Doc{
		"signal_id": signal.ID.String(),
		"type":      signal.Type,
		"severity":  string(signal.Severity),
	})

	return signal, nil
}

// List returns signals newest-first, narrowed by the filter
func (p *Pipeline) List(ctx context.Context, filter store.SignalFilter) ([]*models.Signal, error) {
	return p.store.Signals.List(ctx, filter)
}

// Get returns one signal by id
func (p *Pipeline) Get(ctx context.Context, id uuid.UUID) (*models.Signal, error) {
	return p.store.Signals.GetByID(ctx, id)
}

// Transition moves a signal to a review status. Only pending signals
// move; anything else is an illegal transition.
func (p *Pipeline) Transition(ctx context.Context, id uuid.UUID, to models.SignalStatus) (*models.Signal, error) {
	switch to {
	case models.SignalApproved, models.SignalDenied, models.SignalAcknowledged:
	default:
		return nil, apperr.Validation(apperr.CodeInvalidPayload, fmt.Sprintf("unknown signal status %q", to))
	}

	signal, err := p.store.Signals.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !signal.CanTransition(to) {
		return nil, apperr.Conflict(apperr.CodeIllegalTransition,
			fmt.Sprintf("signal %s cannot move from %s to %s", id, signal.Status, to))
	}

	if err := p.store.Signals.UpdateStatus(ctx, id, to); err != nil {
		return nil, fmt.Errorf("failed to update signal status: %w", err)
	}
	signal.Status = to

	p.publish(ctx, events.EventSignalTransitioned, signal, document.Doc{
		"signal_id": signal.ID.String(),
		"status":    string(signal.Status),
	})

	return signal, nil
}

// ImportDangerous scans a JSONL dangerous-commands log and records one
// pending signal per row that matches a classification rule. Rows that
// match no rule, blank lines and broken JSON are skipped. It returns
// the number of signals created.
func (p *Pipeline) ImportDangerous(ctx context.Context, path string, projectID uuid.UUID, maxRows int) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidPayload,
			fmt.Sprintf("cannot open dangerous log %s", path), err)
	}
	defer file.Close()

	if maxRows <= 0 {
		maxRows = defaultImportRows
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	imported := 0
	scanned := 0
	for scanner.Scan() {
		if scanned >= maxRows {
			break
		}
		scanned++

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var row document.Doc
		if err := json.Unmarshal(line, &row); err != nil {
			p.log.Debug("skipping malformed dangerous log row", "path", path, "row", scanned)
			continue
		}

		severity, ok := p.classifier.Classify(row)
		if !ok {
			continue
		}

		message := row.String("command")
		if message == "" {
			message = row.String("message")
		}

		if _, err := p.Create(ctx, CreateParams{
			ProjectID: projectID,
			MissionID: missionIDFromRow(row),
			Type:      row.String("event"),
			Severity:  severity,
			Message:   message,
		}); err != nil {
			return imported, fmt.Errorf("failed to import dangerous log row %d: %w", scanned, err)
		}
		imported++
	}
	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("failed to read dangerous log %s: %w", path, err)
	}

	return imported, nil
}

// missionIDFromRow pulls an optional mission reference out of a log
// row; rows written by the CLI carry the id without dashes
func missionIDFromRow(row document.Doc) *uuid.UUID {
	raw := row.String("mission_id")
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

// publish sends a hub event on the project channel, best-effort
func (p *Pipeline) publish(ctx context.Context, name string, signal *models.Signal, payload document.Doc) {
	if p.publisher == nil {
		return
	}

	project, err := p.store.Projects.GetByID(ctx, signal.ProjectID)
	if err != nil {
		p.log.Debug("skipping signal event, project lookup failed", "project_id", signal.ProjectID, "error", err)
		return
	}

	event := events.New(name, project.Slug)
	if signal.MissionID != nil {
		event.MissionID = signal.MissionID.String()
	}
	event.Payload = payload

	if err := p.publisher.Publish(ctx, event); err != nil {
		p.log.Warn("failed to publish signal event", "event", name, "error", err)
	}
}
