package api

import (
	"time"

	"fabline/internal/orders"
	"fabline/internal/workflow"
)

const dateOnlyFormat = "2006-01-02"

// FromOrder converts an order record to its API representation.
func FromOrder(order *orders.Order) OrderSummary {
	if order == nil {
		return OrderSummary{}
	}
	dto := OrderSummary{
		ID:        order.ID,
		Reference: order.Reference,
		Customer:  order.Customer,
		Status:    order.Status,
	}
	if !order.DeliveryDate.IsZero() {
		dto.DeliveryDate = order.DeliveryDate.UTC().Format(dateOnlyFormat)
	}
	if !order.CreatedAt.IsZero() {
		dto.CreatedAt = order.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !order.UpdatedAt.IsZero() {
		dto.UpdatedAt = order.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromOrders converts a slice of order records into API DTOs.
func FromOrders(list []*orders.Order) []OrderSummary {
	if len(list) == 0 {
		return nil
	}
	out := make([]OrderSummary, 0, len(list))
	for _, order := range list {
		out = append(out, FromOrder(order))
	}
	return out
}

// FromStepRecord merges a step descriptor with its record and derived gate
// state into one API step entry.
func FromStepRecord(desc workflow.StepDescriptor, record *orders.StepRecord, locked, skipped bool) StepState {
	dto := StepState{
		Key:     desc.Key,
		Title:   desc.Title,
		Status:  string(orders.StepPending),
		Locked:  locked,
		Skipped: skipped,
	}
	if record == nil {
		return dto
	}
	dto.Status = string(record.Status)
	dto.Remark = record.Remark
	dto.Images = append([]string(nil), record.Images...)
	dto.BoxCount = record.BoxCount
	dto.CarrierName = record.CarrierName
	dto.TrackingNumber = record.TrackingNumber
	dto.UpdatedBy = record.UpdatedBy
	if !record.UpdatedAt.IsZero() {
		dto.UpdatedAt = record.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	dto.AuditLog = FromAuditEntries(record.AuditLog)
	return dto
}

// FromAuditEntries converts an audit trail to API payload entries. The result
// is never nil so the JSON field always renders as an array.
func FromAuditEntries(entries []orders.AuditEntry) []AuditEntry {
	out := make([]AuditEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, AuditEntry{
			Action:    entry.Action,
			Actor:     entry.Actor,
			Detail:    entry.Detail,
			Timestamp: entry.Timestamp.UTC().Format(dateTimeFormat),
		})
	}
	return out
}

// FromWorkflowView flattens an engine view into the API workflow payload.
// Steps appear in pipeline order with locked and skipped display state.
func FromWorkflowView(def workflow.Definition, view *workflow.View) WorkflowView {
	if view == nil {
		return WorkflowView{}
	}
	steps := make([]StepState, 0, def.Len())
	for index, desc := range def.Steps() {
		locked := workflow.IsLocked(def, view.Records, index)
		skipped := workflow.IsSkippedDisplay(def, view.Records, index)
		steps = append(steps, FromStepRecord(desc, view.Records[desc.Key], locked, skipped))
	}
	return WorkflowView{
		Order: FromOrder(view.Order),
		Steps: steps,
		Progress: Progress{
			Percent:  view.Progress.Percent,
			HasIssue: view.Progress.HasIssue,
		},
	}
}

// FromStockLines converts requirement lines to API payload entries.
func FromStockLines(lines []orders.StockLine) []StockLine {
	out := make([]StockLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, StockLine{
			ComponentID:   line.ComponentID,
			ComponentName: line.ComponentName,
			RequiredQty:   line.RequiredQty,
			WithdrawnQty:  line.WithdrawnQty,
			RemainingQty:  line.Remaining(),
		})
	}
	return out
}

// FromWithdrawal converts a withdrawal receipt to its API representation.
func FromWithdrawal(withdrawal *orders.Withdrawal) Withdrawal {
	if withdrawal == nil {
		return Withdrawal{}
	}
	lines := make([]WithdrawalLine, 0, len(withdrawal.Lines))
	for _, line := range withdrawal.Lines {
		lines = append(lines, WithdrawalLine{
			ComponentID: line.ComponentID,
			Quantity:    line.Quantity,
		})
	}
	return Withdrawal{
		ID:        withdrawal.ID,
		Requester: withdrawal.Requester,
		CreatedAt: withdrawal.CreatedAt.UTC().Format(dateTimeFormat),
		Lines:     lines,
	}
}

// FromWithdrawals converts withdrawal history to API payload entries.
func FromWithdrawals(withdrawals []orders.Withdrawal) []Withdrawal {
	out := make([]Withdrawal, 0, len(withdrawals))
	for i := range withdrawals {
		out = append(out, FromWithdrawal(&withdrawals[i]))
	}
	return out
}

// FromHealthSummary converts store health buckets to API payload.
func FromHealthSummary(health orders.HealthSummary) HealthSummary {
	return HealthSummary{
		Total:      health.Total,
		NotStarted: health.NotStarted,
		InProgress: health.InProgress,
		WithIssues: health.WithIssues,
		Shipped:    health.Shipped,
	}
}

// ParseDeliveryDate parses the date-only payload format used by order
// creation requests. A blank value yields the zero time.
func ParseDeliveryDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateOnlyFormat, value)
}
