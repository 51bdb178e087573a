package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"fabline/internal/api"
	"fabline/internal/orderaccess"
)

// resolveOrder accepts either a numeric order id or an order reference.
func resolveOrder(ctx context.Context, access orderaccess.Access, arg string) (*api.OrderSummary, error) {
	trimmed := strings.TrimSpace(arg)
	if trimmed == "" {
		return nil, fmt.Errorf("order id or reference is required")
	}
	if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		order, err := access.Describe(ctx, id)
		if err != nil {
			return nil, err
		}
		if order != nil {
			return order, nil
		}
	}
	order, err := access.DescribeByReference(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, fmt.Errorf("order %q not found", trimmed)
	}
	return order, nil
}

// parseStockLines converts component=qty arguments to request lines.
func parseStockLines(args []string) ([]api.StockLineRequest, error) {
	lines := make([]api.StockLineRequest, 0, len(args))
	for _, arg := range args {
		component, qtyText, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid stock line %q (expected component=qty)", arg)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(qtyText))
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("invalid quantity in %q", arg)
		}
		lines = append(lines, api.StockLineRequest{
			ComponentID: strings.TrimSpace(component),
			RequiredQty: qty,
		})
	}
	return lines, nil
}

// parseWithdrawItems converts component=qty arguments to withdrawal items.
func parseWithdrawItems(args []string) ([]api.WithdrawItemRequest, error) {
	items := make([]api.WithdrawItemRequest, 0, len(args))
	for _, arg := range args {
		component, qtyText, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid withdrawal item %q (expected component=qty)", arg)
		}
		qty, err := strconv.Atoi(strings.TrimSpace(qtyText))
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("invalid quantity in %q", arg)
		}
		items = append(items, api.WithdrawItemRequest{
			ComponentID:  strings.TrimSpace(component),
			WithdrawnQty: qty,
		})
	}
	return items, nil
}
