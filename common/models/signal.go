package models

import (
	"time"

	"github.com/google/uuid"
)

// SignalStatus tracks review state; only pending signals may transition
type SignalStatus string

const (
	SignalPending      SignalStatus = "pending"
	SignalApproved     SignalStatus = "approved"
	SignalDenied       SignalStatus = "denied"
	SignalAcknowledged SignalStatus = "acknowledged"
)

// Severity levels for signals
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Well-known signal types
const (
	SignalDangerousCommand = "dangerous_command"
	SignalApprovalRequired = "approval_required"
	SignalFailingTest      = "failing_test"
	SignalSelfHealFailed   = "self_heal_failed"
	SignalOrchestratorRun  = "orchestrator_run"
)

// Signal is a classified notable event awaiting review
// Maps to: signal table
type Signal struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ProjectID uuid.UUID  `db:"project_id" json:"project_id"`
	MissionID *uuid.UUID `db:"mission_id" json:"mission_id,omitempty"`

	Type     string       `db:"type" json:"type"`
	Severity Severity     `db:"severity" json:"severity"`
	Status   SignalStatus `db:"status" json:"status"`
	Message  string       `db:"message" json:"message"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CanTransition reports whether the status move is legal.
// pending → {approved, denied, acknowledged}; everything else is frozen.
func (s *Signal) CanTransition(to SignalStatus) bool {
	if s.Status != SignalPending {
		return false
	}
	switch to {
	case SignalApproved, SignalDenied, SignalAcknowledged:
		return true
	}
	return false
}
