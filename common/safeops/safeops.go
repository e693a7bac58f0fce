// Package safeops decides whether a dangerous operation may proceed
// without human approval.
package safeops

import "strings"

// Automation levels. Only manual has defined semantics today; the
// other two are reserved for a future policy that consults the
// dangerous-command guard rules and the approvals ledger.
const (
	LevelManual      = "manual"
	LevelAutoSafeOps = "auto-safeops"
	LevelAutoAll     = "auto-all"
)

// ShouldAutoApprove reports whether the tagged command may run without
// a pending approval signal. Callers route a false result into the
// signal pipeline as a pending dangerous_command signal.
func ShouldAutoApprove(commandTag, missionID, automationLevel string) bool {
	level := strings.ToLower(strings.TrimSpace(automationLevel))
	if level == "" {
		level = LevelManual
	}
	// manual: never auto-approve; humans confirm via the approvals flow
	if level == LevelManual {
		return false
	}
	// auto-safeops / auto-all are reserved and behave as manual until
	// the rule-driven policy lands
	return false
}
