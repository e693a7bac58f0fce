// Package apperr defines the domain error kinds shared across the hub,
// the workflow engine and the CLI. Handlers map kinds to HTTP status
// codes; the CLI maps them to exit codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation policy
type Kind int

const (
	// KindValidation is malformed input; 4xx, no retry
	KindValidation Kind = iota
	// KindNotFound is an absent entity; 404, no retry
	KindNotFound
	// KindConflict is an illegal state transition or precondition; 400, no retry
	KindConflict
	// KindTransient is a retryable failure (subprocess timeout, db hiccup)
	KindTransient
	// KindFatal must not be auto-recovered (audit tamper, store corruption)
	KindFatal
	// KindExternal is a best-effort collaborator failure; logged, never fatal
	KindExternal
)

// Well-known machine codes
const (
	CodeMissionNotFound   = "MISSION_NOT_FOUND"
	CodeSignalNotFound    = "SIGNAL_NOT_FOUND"
	CodeProjectNotFound   = "PROJECT_NOT_FOUND"
	CodeAgentNotFound     = "AGENT_NOT_FOUND"
	CodeGroupNotFound     = "GROUP_NOT_FOUND"
	CodeTaskNotFound      = "TASK_NOT_FOUND"
	CodeRunNotFound       = "RUN_NOT_FOUND"
	CodeSessionNotFound   = "SESSION_NOT_FOUND"
	CodeArtifactNotFound  = "ARTIFACT_NOT_FOUND"
	CodeNoTaskGroups      = "NO_TASK_GROUPS"
	CodeRunNotRecorded    = "RUN_NOT_RECORDED"
	CodeRunModeReserved   = "RUN_MODE_RESERVED"
	CodeIllegalTransition = "ILLEGAL_TRANSITION"
	CodeAuditTampered     = "AUDIT_TAMPERED"
	CodeInvalidPayload    = "INVALID_PAYLOAD"
	CodeCommandNotFound   = "COMMAND_NOT_FOUND"
	CodeAgentTimeout      = "AGENT_TIMEOUT"
)

// Error carries a kind, a machine code and a human message
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	if e.Msg == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an error of the given kind
func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap builds an error of the given kind around a cause
func Wrap(kind Kind, code, msg string, err error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Err: err}
}

func Validation(code, msg string) *Error { return New(KindValidation, code, msg) }
func NotFound(code, msg string) *Error   { return New(KindNotFound, code, msg) }
func Conflict(code, msg string) *Error   { return New(KindConflict, code, msg) }

func Transient(code, msg string, err error) *Error { return Wrap(KindTransient, code, msg, err) }
func Fatal(code, msg string, err error) *Error     { return Wrap(KindFatal, code, msg, err) }
func External(code, msg string, err error) *Error  { return Wrap(KindExternal, code, msg, err) }

// KindOf extracts the kind; unclassified errors count as fatal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindFatal
}

// CodeOf extracts the machine code, empty for unclassified errors
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given machine code
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps an error to a conventional HTTP status code
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusBadRequest
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
