package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fabline/internal/logging"
	"fabline/internal/orders"
)

// WithdrawStock records a stock withdrawal against the order's procurement
// requirements. It never changes step status; the procurement step is marked
// complete through ApplyStepUpdate once all materials are gathered.
func (e *Engine) WithdrawStock(ctx context.Context, orderID int64, items []WithdrawalItem, requester string) (*orders.Withdrawal, error) {
	unlock := e.lockOrder(orderID)
	defer unlock()

	requester = strings.TrimSpace(requester)
	if requester == "" {
		return nil, newValidationError("requester", "requester is required")
	}

	order, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, &PersistenceError{Op: "load order", Err: err}
	}
	if order == nil {
		return nil, newNotFoundError("order", "order does not exist")
	}

	lines, err := e.store.StockLinesForOrder(ctx, orderID)
	if err != nil {
		return nil, &PersistenceError{Op: "load stock lines", Err: err}
	}
	byComponent := make(map[string]orders.StockLine, len(lines))
	for _, line := range lines {
		byComponent[line.ComponentID] = line
	}

	var withdrawalLines []orders.WithdrawalLine
	for _, item := range items {
		componentID := strings.TrimSpace(item.ComponentID)
		if componentID == "" {
			return nil, newValidationError("items", "component id is required")
		}
		if item.WithdrawnQty <= 0 {
			continue
		}
		line, ok := byComponent[componentID]
		if !ok {
			return nil, newNotFoundError("items", "unknown component "+componentID)
		}
		if item.WithdrawnQty > line.Remaining() {
			return nil, newValidationError(
				"items",
				fmt.Sprintf("component %s: requested %d exceeds remaining requirement %d", componentID, item.WithdrawnQty, line.Remaining()),
			)
		}
		withdrawalLines = append(withdrawalLines, orders.WithdrawalLine{
			ComponentID: componentID,
			Quantity:    item.WithdrawnQty,
		})
	}
	if len(withdrawalLines) == 0 {
		return nil, newValidationError("items", "at least one line with a positive quantity is required")
	}

	now := e.now()
	withdrawal := &orders.Withdrawal{
		ID:        uuid.NewString(),
		OrderID:   orderID,
		Requester: requester,
		CreatedAt: now,
		Lines:     withdrawalLines,
	}
	audit := orders.AuditEntry{
		OrderID:   orderID,
		StepKey:   e.def.Step(0).Key,
		Action:    ActionWithdrawStock,
		Actor:     requester,
		Detail:    fmt.Sprintf("receipt %s, %d line(s)", withdrawal.ID, len(withdrawalLines)),
		Timestamp: now,
	}

	if err := e.store.ApplyWithdrawal(ctx, withdrawal, audit); err != nil {
		if errors.Is(err, orders.ErrOverWithdrawal) {
			return nil, newValidationError("items", err.Error())
		}
		return nil, &PersistenceError{Op: "commit withdrawal", Err: err}
	}

	e.logger.Info("stock withdrawn",
		logging.Int64(logging.FieldOrderID, orderID),
		logging.String("receipt", withdrawal.ID),
		logging.Int("lines", len(withdrawalLines)),
		logging.String(logging.FieldActor, requester),
	)
	if err := e.notifier.NotifyStockWithdrawn(ctx, order.Reference, requester, len(withdrawalLines)); err != nil {
		e.logger.Warn("notification failed",
			logging.Int64(logging.FieldOrderID, orderID),
			logging.Error(err),
		)
	}
	return withdrawal, nil
}

// StockLines returns the current requirement lines for an order.
func (e *Engine) StockLines(ctx context.Context, orderID int64) ([]orders.StockLine, error) {
	lines, err := e.store.StockLinesForOrder(ctx, orderID)
	if err != nil {
		return nil, &PersistenceError{Op: "load stock lines", Err: err}
	}
	return lines, nil
}

// Withdrawals returns the withdrawal history for an order.
func (e *Engine) Withdrawals(ctx context.Context, orderID int64) ([]orders.Withdrawal, error) {
	withdrawals, err := e.store.WithdrawalsForOrder(ctx, orderID)
	if err != nil {
		return nil, &PersistenceError{Op: "load withdrawals", Err: err}
	}
	return withdrawals, nil
}
