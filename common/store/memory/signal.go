package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/apperr"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/store"
)

type signalRepo struct {
	s *state
}

func (r *signalRepo) Create(ctx context.Context, signal *models.Signal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if signal.ID == uuid.Nil {
		signal.ID = uuid.New()
	}
	if signal.CreatedAt.IsZero() {
		signal.CreatedAt = time.Now().UTC()
	}
	r.s.signals[signal.ID] = cloneSignal(signal)
	return nil
}

func (r *signalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Signal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sig, ok := r.s.signals[id]
	if !ok {
		return nil, apperr.NotFound(apperr.CodeSignalNotFound, "signal not found")
	}
	return cloneSignal(sig), nil
}

func (r *signalRepo) List(ctx context.Context, filter store.SignalFilter) ([]*models.Signal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Signal
	for _, sig := range r.s.signals {
		if filter.ProjectID != nil && sig.ProjectID != *filter.ProjectID {
			continue
		}
		if filter.Status != "" && sig.Status != filter.Status {
			continue
		}
		if filter.Type != "" && sig.Type != filter.Type {
			continue
		}
		out = append(out, cloneSignal(sig))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *signalRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.SignalStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sig, ok := r.s.signals[id]
	if !ok {
		return apperr.NotFound(apperr.CodeSignalNotFound, "signal not found")
	}
	sig.Status = status
	return nil
}
