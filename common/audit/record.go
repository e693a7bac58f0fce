package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
)

// Well-known audit events emitted by the orchestrator
const (
	EventPlan  = "PLAN"
	EventTest  = "TEST"
	EventPatch = "PATCH"
	EventApply = "APPLY"
)

// Record is one ordered line in the audit manifest
type Record struct {
	// RFC 3339 UTC
	TS    string `json:"ts"`
	Actor string `json:"actor"`

	// PLAN|TEST|PATCH|APPLY|...
	Event string `json:"event"`

	RuleIDs    []string `json:"rule_ids"`
	PolicyRefs []string `json:"policy_refs"`

	// Hex digests; empty when not applicable
	ReasoningDigest string `json:"reasoning_digest"`
	InputsHash      string `json:"inputs_hash"`
	OutputsHash     string `json:"outputs_hash"`

	ApprovalState  string `json:"approval_state"`
	ApprovalsRowID string `json:"approvals_row_id"`

	Metadata document.Doc `json:"metadata,omitempty"`
}

// NewRecord builds a record stamped now with empty refs
func NewRecord(actor, event string) *Record {
	return &Record{
		TS:            time.Now().UTC().Format(time.RFC3339),
		Actor:         actor,
		Event:         event,
		RuleIDs:       []string{},
		PolicyRefs:    []string{},
		ApprovalState: "none",
	}
}

// Validate checks the minimum contract for a manifest line
func (r *Record) Validate() error {
	if r.TS == "" {
		return fmt.Errorf("audit record missing ts")
	}
	if _, err := time.Parse(time.RFC3339, r.TS); err != nil {
		return fmt.Errorf("audit record ts not RFC 3339: %w", err)
	}
	if r.Actor == "" {
		return fmt.Errorf("audit record missing actor")
	}
	if r.Event == "" {
		return fmt.Errorf("audit record missing event")
	}
	return nil
}

// WithInputs sets the inputs digest from raw input bytes
func (r *Record) WithInputs(data []byte) *Record {
	r.InputsHash = HexDigest(data)
	return r
}

// WithOutputs sets the outputs digest from raw output bytes
func (r *Record) WithOutputs(data []byte) *Record {
	r.OutputsHash = HexDigest(data)
	return r
}

// HexDigest returns the lowercase hex SHA-256 of data
func HexDigest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Digest returns the lowercase hex SHA-256 of a string
func Digest(text string) string {
	return HexDigest([]byte(text))
}
