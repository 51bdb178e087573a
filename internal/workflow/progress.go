package workflow

import (
	"fabline/internal/orders"
)

// StepProgress is the per-step display state derived for one order.
type StepProgress struct {
	Key       string
	Title     string
	Status    orders.StepStatus
	Locked    bool
	Skipped   bool
	UpdatedBy string
}

// ProgressSummary is the derived read model for one order's pipeline. It is
// recomputed on every read and carries no hidden state.
type ProgressSummary struct {
	Percent  int
	Steps    []StepProgress
	HasIssue bool
}

// Summarize computes the progress summary for an order's record set.
func Summarize(def Definition, records map[string]*orders.StepRecord) ProgressSummary {
	total := def.Len()
	summary := ProgressSummary{Steps: make([]StepProgress, 0, total)}

	complete := 0
	for i, desc := range def.Steps() {
		record := records[desc.Key]
		status := orders.StepPending
		updatedBy := ""
		if record != nil {
			status = record.Status
			updatedBy = record.UpdatedBy
		}
		if status == orders.StepComplete {
			complete++
		}
		if status == orders.StepIssue {
			summary.HasIssue = true
		}
		summary.Steps = append(summary.Steps, StepProgress{
			Key:       desc.Key,
			Title:     desc.Title,
			Status:    status,
			Locked:    IsLocked(def, records, i),
			Skipped:   IsSkippedDisplay(def, records, i),
			UpdatedBy: updatedBy,
		})
	}

	if total > 0 {
		summary.Percent = 100 * complete / total
	}
	return summary
}

// OrderStatusLabel returns the completed-status label of the highest-index
// complete step, or the not-started label when none are complete.
func OrderStatusLabel(def Definition, records map[string]*orders.StepRecord) string {
	label := orders.StatusLabelNotStarted
	for _, desc := range def.Steps() {
		record := records[desc.Key]
		if record != nil && record.Status == orders.StepComplete {
			label = desc.CompletedStatusLabel
		}
	}
	return label
}
