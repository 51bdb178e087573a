package workflow_test

import (
	"testing"

	"fabline/internal/orders"
	"fabline/internal/workflow"
)

func TestSummarizePercentAndFlags(t *testing.T) {
	def := workflow.Default()

	records := recordsWithStatuses(def, map[string]orders.StepStatus{
		"procurement": orders.StepComplete,
	})
	summary := workflow.Summarize(def, records)
	if summary.Percent != 12 {
		t.Fatalf("1/8 complete should report 12%%, got %d", summary.Percent)
	}
	if summary.HasIssue {
		t.Fatal("no issue expected")
	}
	if len(summary.Steps) != def.Len() {
		t.Fatalf("expected %d step rows, got %d", def.Len(), len(summary.Steps))
	}
	if summary.Steps[0].Locked {
		t.Fatal("step 0 must not be locked")
	}
	if !summary.Steps[2].Locked || !summary.Steps[2].Skipped {
		t.Fatalf("ribbon should be locked and skipped: %+v", summary.Steps[2])
	}

	records["assembly"].Status = orders.StepIssue
	summary = workflow.Summarize(def, records)
	if !summary.HasIssue {
		t.Fatal("issue flag should be set")
	}

	for _, desc := range def.Steps() {
		records[desc.Key].Status = orders.StepComplete
	}
	summary = workflow.Summarize(def, records)
	if summary.Percent != 100 {
		t.Fatalf("all complete should be 100%%, got %d", summary.Percent)
	}
}

func TestOrderStatusLabel(t *testing.T) {
	def := workflow.Default()

	records := recordsWithStatuses(def, nil)
	if got := workflow.OrderStatusLabel(def, records); got != orders.StatusLabelNotStarted {
		t.Fatalf("expected %q, got %q", orders.StatusLabelNotStarted, got)
	}

	records["procurement"].Status = orders.StepComplete
	if got := workflow.OrderStatusLabel(def, records); got != "materials withdrawn" {
		t.Fatalf("unexpected label %q", got)
	}

	// The highest-index complete step wins even with gaps.
	records["qc"].Status = orders.StepComplete
	if got := workflow.OrderStatusLabel(def, records); got != "inspected" {
		t.Fatalf("unexpected label %q", got)
	}
}
