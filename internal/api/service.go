package api

import (
	"context"

	"fabline/internal/orders"
	"fabline/internal/workflow"
)

// OrderStore abstracts order persistence interactions needed for API queries.
type OrderStore interface {
	CreateOrder(ctx context.Context, in orders.NewOrder, stepKeys []string) (*orders.Order, error)
	GetOrder(ctx context.Context, id int64) (*orders.Order, error)
	GetOrderByReference(ctx context.Context, reference string) (*orders.Order, error)
	ListOrders(ctx context.Context, statuses ...string) ([]*orders.Order, error)
	Stats(ctx context.Context) (map[string]int, error)
	Health(ctx context.Context) (orders.HealthSummary, error)
}

// WorkflowService exposes order and workflow operations returning API DTOs.
// The daemon HTTP handlers and the CLI's direct-store mode both sit on top
// of it.
type WorkflowService struct {
	store  OrderStore
	engine *workflow.Engine
}

// NewWorkflowService constructs a WorkflowService around a store and engine.
func NewWorkflowService(store OrderStore, engine *workflow.Engine) *WorkflowService {
	if store == nil || engine == nil {
		return nil
	}
	return &WorkflowService{store: store, engine: engine}
}

// CreateOrder registers a new order with the full pipeline seeded.
func (s *WorkflowService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderSummary, error) {
	if s == nil {
		return nil, nil
	}
	deliveryDate, err := ParseDeliveryDate(req.DeliveryDate)
	if err != nil {
		return nil, err
	}
	stock := make([]orders.StockLine, 0, len(req.Stock))
	for _, line := range req.Stock {
		stock = append(stock, orders.StockLine{
			ComponentID:   line.ComponentID,
			ComponentName: line.ComponentName,
			RequiredQty:   line.RequiredQty,
		})
	}
	order, err := s.store.CreateOrder(ctx, orders.NewOrder{
		Reference:    req.Reference,
		Customer:     req.Customer,
		DeliveryDate: deliveryDate,
		Stock:        stock,
	}, s.engine.Definition().Keys())
	if err != nil {
		return nil, err
	}
	dto := FromOrder(order)
	return &dto, nil
}

// List returns orders filtered by status label.
func (s *WorkflowService) List(ctx context.Context, statuses ...string) ([]OrderSummary, error) {
	if s == nil {
		return nil, nil
	}
	list, err := s.store.ListOrders(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromOrders(list), nil
}

// Describe fetches a single order. Returns nil when absent.
func (s *WorkflowService) Describe(ctx context.Context, id int64) (*OrderSummary, error) {
	if s == nil {
		return nil, nil
	}
	order, err := s.store.GetOrder(ctx, id)
	if err != nil || order == nil {
		return nil, err
	}
	dto := FromOrder(order)
	return &dto, nil
}

// DescribeByReference fetches a single order by its unique reference.
func (s *WorkflowService) DescribeByReference(ctx context.Context, reference string) (*OrderSummary, error) {
	if s == nil {
		return nil, nil
	}
	order, err := s.store.GetOrderByReference(ctx, reference)
	if err != nil || order == nil {
		return nil, err
	}
	dto := FromOrder(order)
	return &dto, nil
}

// Workflow returns the full step board for one order.
func (s *WorkflowService) Workflow(ctx context.Context, orderID int64) (*WorkflowView, error) {
	if s == nil {
		return nil, nil
	}
	view, err := s.engine.GetWorkflow(ctx, orderID)
	if err != nil {
		return nil, err
	}
	dto := FromWorkflowView(s.engine.Definition(), view)
	return &dto, nil
}

// UpdateStep applies one step transition and returns the committed state.
func (s *WorkflowService) UpdateStep(ctx context.Context, orderID int64, stepKey string, req StepUpdateRequest, actor workflow.Actor) (*StepState, error) {
	if s == nil {
		return nil, nil
	}
	status, ok := orders.ParseStepStatus(req.Status)
	if !ok {
		return nil, workflow.NewFieldError("status", "unknown status "+req.Status)
	}
	record, err := s.engine.ApplyStepUpdate(ctx, orderID, stepKey, workflow.StepUpdate{
		Status:         status,
		Remark:         req.Remark,
		AddImages:      req.AddImages,
		RemoveImages:   req.RemoveImages,
		BoxCount:       req.BoxCount,
		CarrierName:    req.CarrierName,
		TrackingNumber: req.TrackingNumber,
	}, actor)
	if err != nil {
		return nil, err
	}
	return s.stepState(ctx, orderID, stepKey, record)
}

// ReopenStep returns a complete or issue step to in_progress.
func (s *WorkflowService) ReopenStep(ctx context.Context, orderID int64, stepKey string, actor workflow.Actor) (*StepState, error) {
	if s == nil {
		return nil, nil
	}
	record, err := s.engine.ReopenStep(ctx, orderID, stepKey, actor)
	if err != nil {
		return nil, err
	}
	return s.stepState(ctx, orderID, stepKey, record)
}

// Withdraw commits a stock withdrawal and returns the receipt.
func (s *WorkflowService) Withdraw(ctx context.Context, orderID int64, req WithdrawRequest) (*Withdrawal, error) {
	if s == nil {
		return nil, nil
	}
	items := make([]workflow.WithdrawalItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, workflow.WithdrawalItem{
			ComponentID:  item.ComponentID,
			WithdrawnQty: item.WithdrawnQty,
		})
	}
	receipt, err := s.engine.WithdrawStock(ctx, orderID, items, req.Requester)
	if err != nil {
		return nil, err
	}
	dto := FromWithdrawal(receipt)
	return &dto, nil
}

// Stock returns the requirement lines for an order.
func (s *WorkflowService) Stock(ctx context.Context, orderID int64) ([]StockLine, error) {
	if s == nil {
		return nil, nil
	}
	lines, err := s.engine.StockLines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return FromStockLines(lines), nil
}

// Withdrawals returns the withdrawal history for an order.
func (s *WorkflowService) Withdrawals(ctx context.Context, orderID int64) ([]Withdrawal, error) {
	if s == nil {
		return nil, nil
	}
	history, err := s.engine.Withdrawals(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return FromWithdrawals(history), nil
}

// Stats returns order counts keyed by status label.
func (s *WorkflowService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil {
		return nil, nil
	}
	return s.store.Stats(ctx)
}

// Health returns the aggregated order health buckets.
func (s *WorkflowService) Health(ctx context.Context) (HealthSummary, error) {
	if s == nil {
		return HealthSummary{}, nil
	}
	health, err := s.store.Health(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	return FromHealthSummary(health), nil
}

// stepState re-derives the board state for one committed record.
func (s *WorkflowService) stepState(ctx context.Context, orderID int64, stepKey string, record *orders.StepRecord) (*StepState, error) {
	def := s.engine.Definition()
	desc, index, ok := def.ByKey(stepKey)
	if !ok {
		dto := StepState{Key: stepKey, Status: string(record.Status)}
		return &dto, nil
	}
	records, err := s.engine.StepRecords(ctx, orderID)
	if err != nil {
		return nil, err
	}
	records[stepKey] = record
	locked := workflow.IsLocked(def, records, index)
	skipped := workflow.IsSkippedDisplay(def, records, index)
	dto := FromStepRecord(desc, record, locked, skipped)
	return &dto, nil
}
