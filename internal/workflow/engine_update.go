package workflow

import (
	"context"
	"strings"

	"fabline/internal/logging"
	"fabline/internal/orders"
)

// ApplyStepUpdate validates and applies one step transition. On success the
// committed record (audit log attached) is returned. On any validation
// failure no state changes.
func (e *Engine) ApplyStepUpdate(ctx context.Context, orderID int64, stepKey string, update StepUpdate, actor Actor) (*orders.StepRecord, error) {
	unlock := e.lockOrder(orderID)
	defer unlock()

	order, records, err := e.loadOrderState(ctx, orderID)
	if err != nil {
		return nil, err
	}

	desc, index, ok := e.def.ByKey(stepKey)
	if !ok {
		return nil, newNotFoundError("step", "unknown step key "+stepKey)
	}
	current := records[stepKey]
	if current == nil {
		return nil, newNotFoundError("step", "step record missing")
	}

	target := update.Status
	switch target {
	case orders.StepInProgress, orders.StepIssue, orders.StepComplete:
	default:
		return nil, newValidationError("status", "target status must be in_progress, issue, or complete")
	}

	reopening := current.Status == orders.StepComplete || current.Status == orders.StepIssue
	if IsLocked(e.def, records, index) && !reopening {
		return nil, newValidationError("step", "locked")
	}
	if !CanActorUpdate(desc, actor.Role, e.restrictedRole) {
		return nil, newValidationError("role", "step restricted to role "+e.restrictedRole)
	}

	record := current.Clone()
	record.Images = applyImageDelta(record.Images, update.AddImages, update.RemoveImages)

	remark := strings.TrimSpace(update.Remark)
	if target == orders.StepIssue && remark == "" {
		return nil, newValidationError("remark", "remark is required when reporting an issue")
	}
	if target != orders.StepInProgress && !desc.IsDeliverySlip && len(record.Images) == 0 {
		return nil, newValidationError("images", "at least one image is required")
	}

	if update.BoxCount != nil {
		if !desc.HasBoxCount {
			return nil, newValidationError("boxCount", "step does not carry a box count")
		}
		if *update.BoxCount <= 0 {
			return nil, newValidationError("boxCount", "box count must be positive")
		}
		record.BoxCount = *update.BoxCount
	}
	if update.CarrierName != nil || update.TrackingNumber != nil {
		if !desc.HasShippingInfo {
			return nil, newValidationError("shipping", "step does not carry shipping info")
		}
		if update.CarrierName != nil {
			record.CarrierName = strings.TrimSpace(*update.CarrierName)
		}
		if update.TrackingNumber != nil {
			record.TrackingNumber = strings.TrimSpace(*update.TrackingNumber)
		}
	}

	now := e.now()
	record.Status = target
	record.Remark = remark
	record.UpdatedAt = now
	record.UpdatedBy = actor.ID

	entry := orders.AuditEntry{
		OrderID:   orderID,
		StepKey:   stepKey,
		Action:    auditAction(target, update.AuditAction),
		Actor:     actor.ID,
		Detail:    auditDetail(target, remark, update.AuditDetail),
		Timestamp: now,
	}

	transition := orders.StepTransition{Record: record, Audit: []orders.AuditEntry{entry}}

	if target == orders.StepComplete {
		if next := index + 1; next < e.def.Len() {
			nextKey := e.def.Step(next).Key
			if nextRecord := records[nextKey]; nextRecord != nil && nextRecord.Status == orders.StepPending {
				advance := nextRecord.Clone()
				advance.Status = orders.StepInProgress
				advance.UpdatedAt = now
				advance.UpdatedBy = actor.ID
				transition.Advance = advance
			}
		}
		// Mirror the label of the highest-index complete step so redoing an
		// earlier step never regresses the order status.
		resulting := cloneRecordSet(records)
		resulting[stepKey] = record
		transition.OrderStatus = OrderStatusLabel(e.def, resulting)
	}

	if err := e.store.CommitStepTransition(ctx, transition); err != nil {
		return nil, &PersistenceError{Op: "commit step transition", Err: err}
	}

	e.logger.Info("step updated",
		logging.Int64(logging.FieldOrderID, orderID),
		logging.String(logging.FieldStep, stepKey),
		logging.String("status", string(target)),
		logging.String(logging.FieldActor, actor.ID),
	)
	e.notifyStepUpdate(ctx, order, desc, index, target, remark)

	committed, err := e.store.GetStepRecord(ctx, orderID, stepKey)
	if err != nil {
		return nil, &PersistenceError{Op: "reload step record", Err: err}
	}
	return committed, nil
}

// ReopenStep returns a complete or issue step to in_progress without touching
// downstream steps. Work already done downstream stays valid; only forward
// progress is ever forced.
func (e *Engine) ReopenStep(ctx context.Context, orderID int64, stepKey string, actor Actor) (*orders.StepRecord, error) {
	unlock := e.lockOrder(orderID)
	defer unlock()

	_, records, err := e.loadOrderState(ctx, orderID)
	if err != nil {
		return nil, err
	}

	desc, _, ok := e.def.ByKey(stepKey)
	if !ok {
		return nil, newNotFoundError("step", "unknown step key "+stepKey)
	}
	current := records[stepKey]
	if current == nil {
		return nil, newNotFoundError("step", "step record missing")
	}
	if current.Status != orders.StepComplete && current.Status != orders.StepIssue {
		return nil, newValidationError("status", "only complete or issue steps can be reopened")
	}
	if !CanActorUpdate(desc, actor.Role, e.restrictedRole) {
		return nil, newValidationError("role", "step restricted to role "+e.restrictedRole)
	}

	now := e.now()
	record := current.Clone()
	record.Status = orders.StepInProgress
	record.UpdatedAt = now
	record.UpdatedBy = actor.ID

	resulting := cloneRecordSet(records)
	resulting[stepKey] = record

	transition := orders.StepTransition{
		Record: record,
		Audit: []orders.AuditEntry{{
			OrderID:   orderID,
			StepKey:   stepKey,
			Action:    ActionReopen,
			Actor:     actor.ID,
			Timestamp: now,
		}},
		OrderStatus: OrderStatusLabel(e.def, resulting),
	}
	if err := e.store.CommitStepTransition(ctx, transition); err != nil {
		return nil, &PersistenceError{Op: "commit reopen", Err: err}
	}

	e.logger.Info("step reopened",
		logging.Int64(logging.FieldOrderID, orderID),
		logging.String(logging.FieldStep, stepKey),
		logging.String(logging.FieldActor, actor.ID),
	)

	committed, err := e.store.GetStepRecord(ctx, orderID, stepKey)
	if err != nil {
		return nil, &PersistenceError{Op: "reload step record", Err: err}
	}
	return committed, nil
}

func (e *Engine) notifyStepUpdate(ctx context.Context, order *orders.Order, desc StepDescriptor, index int, target orders.StepStatus, remark string) {
	var err error
	switch {
	case target == orders.StepIssue:
		err = e.notifier.NotifyIssueReported(ctx, order.Reference, desc.Title, remark)
	case target == orders.StepComplete && index == e.def.FinalIndex():
		err = e.notifier.NotifyOrderShipped(ctx, order.Reference)
	case target == orders.StepComplete:
		err = e.notifier.NotifyStepCompleted(ctx, order.Reference, desc.Title)
	}
	if err != nil {
		e.logger.Warn("notification failed",
			logging.Int64(logging.FieldOrderID, order.ID),
			logging.String(logging.FieldStep, desc.Key),
			logging.Error(err),
		)
	}
}

func auditAction(target orders.StepStatus, requested string) string {
	switch target {
	case orders.StepIssue:
		return ActionReportIssue
	case orders.StepComplete:
		return ActionMarkComplete
	}
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	return ActionUpdate
}

func auditDetail(target orders.StepStatus, remark, requested string) string {
	if requested = strings.TrimSpace(requested); requested != "" {
		return requested
	}
	if target == orders.StepIssue {
		return remark
	}
	return ""
}

func applyImageDelta(images, add, remove []string) []string {
	result := append([]string(nil), images...)
	for _, ref := range add {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		result = append(result, ref)
	}
	if len(remove) == 0 {
		return result
	}
	drop := make(map[string]struct{}, len(remove))
	for _, ref := range remove {
		drop[strings.TrimSpace(ref)] = struct{}{}
	}
	filtered := result[:0]
	for _, ref := range result {
		if _, ok := drop[ref]; ok {
			continue
		}
		filtered = append(filtered, ref)
	}
	return filtered
}

func cloneRecordSet(records map[string]*orders.StepRecord) map[string]*orders.StepRecord {
	cp := make(map[string]*orders.StepRecord, len(records))
	for key, record := range records {
		cp[key] = record
	}
	return cp
}
