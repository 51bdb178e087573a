package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fabline/internal/api"
	"fabline/internal/orderaccess"
)

func newOrdersCommand(cmdCtx *commandContext) *cobra.Command {
	ordersCmd := &cobra.Command{
		Use:   "orders",
		Short: "Order operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersList(cmd, cmdCtx, nil, false)
		},
	}

	ordersCmd.AddCommand(newOrdersListCommand(cmdCtx))
	ordersCmd.AddCommand(newOrdersCreateCommand(cmdCtx))
	return ordersCmd
}

func newOrdersListCommand(cmdCtx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, optionally filtered by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrdersList(cmd, cmdCtx, statuses, jsonOut)
		},
	}
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by order status label")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func runOrdersList(cmd *cobra.Command, cmdCtx *commandContext, statuses []string, jsonOut bool) error {
	return cmdCtx.withSession(cmd, func(ctx context.Context, access orderaccess.Access) error {
		list, err := access.ListOrders(ctx, statuses)
		if err != nil {
			return err
		}
		if jsonOut {
			return writeJSON(cmd, api.OrderListResponse{Orders: list})
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No orders.")
			return nil
		}

		rows := make([][]string, 0, len(list))
		for _, order := range list {
			rows = append(rows, []string{
				fmt.Sprintf("%d", order.ID),
				order.Reference,
				order.Customer,
				order.DeliveryDate,
				order.Status,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable(
			[]string{"ID", "Reference", "Customer", "Delivery", "Status"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
		))
		return nil
	})
}

func newOrdersCreateCommand(cmdCtx *commandContext) *cobra.Command {
	var customer string
	var deliveryDate string
	var stockArgs []string

	cmd := &cobra.Command{
		Use:   "create <reference>",
		Short: "Register a new production order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stock, err := parseStockLines(stockArgs)
			if err != nil {
				return err
			}
			return cmdCtx.withSession(cmd, func(ctx context.Context, access orderaccess.Access) error {
				order, err := access.CreateOrder(ctx, api.CreateOrderRequest{
					Reference:    args[0],
					Customer:     customer,
					DeliveryDate: deliveryDate,
					Stock:        stock,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created order %s (id %d)\n", order.Reference, order.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&customer, "customer", "", "Customer name")
	cmd.Flags().StringVar(&deliveryDate, "delivery", "", "Delivery date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&stockArgs, "stock", nil, "Component requirement as component=qty (repeatable)")
	return cmd
}
