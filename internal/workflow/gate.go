package workflow

import (
	"strings"

	"fabline/internal/orders"
)

// IsLocked reports whether the step at index may not be mutated yet. The
// first step is never locked; every other step is locked until its
// predecessor's record is complete. A missing predecessor record counts as
// not complete.
func IsLocked(def Definition, records map[string]*orders.StepRecord, index int) bool {
	if index <= 0 {
		return false
	}
	if index >= def.Len() {
		return true
	}
	prev := records[def.Step(index-1).Key]
	return prev == nil || prev.Status != orders.StepComplete
}

// IsSkippedDisplay reports whether the step should render as skipped: a
// skippable step that is still pending behind a lock. Presentation only; a
// skippable step must still complete before its successor unlocks.
func IsSkippedDisplay(def Definition, records map[string]*orders.StepRecord, index int) bool {
	if index < 0 || index >= def.Len() {
		return false
	}
	desc := def.Step(index)
	if !desc.Skippable {
		return false
	}
	record := records[desc.Key]
	if record == nil || record.Status != orders.StepPending {
		return false
	}
	return IsLocked(def, records, index)
}

// CanActorUpdate reports whether an actor role may mutate the step. Only the
// configured restricted role may touch role-gated steps.
func CanActorUpdate(desc StepDescriptor, actorRole, restrictedRole string) bool {
	if !desc.RequiresRestrictedRole {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(actorRole), strings.TrimSpace(restrictedRole))
}
