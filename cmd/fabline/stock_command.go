package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fabline/internal/api"
	"fabline/internal/orderaccess"
)

func newStockCommand(cmdCtx *commandContext) *cobra.Command {
	stockCmd := &cobra.Command{
		Use:   "stock",
		Short: "Stock requirement and withdrawal operations",
	}
	stockCmd.AddCommand(newStockListCommand(cmdCtx))
	stockCmd.AddCommand(newStockWithdrawCommand(cmdCtx))
	return stockCmd
}

func newStockListCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list <order>",
		Short: "Show requirement lines and withdrawal history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withSession(cmd, func(ctx context.Context, access orderaccess.Access) error {
				order, err := resolveOrder(ctx, access, args[0])
				if err != nil {
					return err
				}
				lines, err := access.Stock(ctx, order.ID)
				if err != nil {
					return err
				}
				history, err := access.Withdrawals(ctx, order.ID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, struct {
						Lines       []api.StockLine  `json:"lines"`
						Withdrawals []api.Withdrawal `json:"withdrawals"`
					}{Lines: lines, Withdrawals: history})
				}

				out := cmd.OutOrStdout()
				if len(lines) == 0 {
					fmt.Fprintln(out, "No stock requirements recorded.")
					return nil
				}
				rows := make([][]string, 0, len(lines))
				for _, line := range lines {
					name := line.ComponentName
					if name == "" {
						name = line.ComponentID
					}
					rows = append(rows, []string{
						line.ComponentID,
						name,
						fmt.Sprintf("%d", line.RequiredQty),
						fmt.Sprintf("%d", line.WithdrawnQty),
						fmt.Sprintf("%d", line.RemainingQty),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Component", "Name", "Required", "Withdrawn", "Remaining"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				fmt.Fprintf(out, "%d withdrawal(s) on record\n", len(history))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newStockWithdrawCommand(cmdCtx *commandContext) *cobra.Command {
	var requester string

	cmd := &cobra.Command{
		Use:   "withdraw <order> <component=qty> [component=qty...]",
		Short: "Withdraw components against an order's requirements",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := parseWithdrawItems(args[1:])
			if err != nil {
				return err
			}
			who := requester
			if who == "" {
				who = cmdCtx.actor().ID
			}
			return cmdCtx.withSession(cmd, func(ctx context.Context, access orderaccess.Access) error {
				order, err := resolveOrder(ctx, access, args[0])
				if err != nil {
					return err
				}
				receipt, err := access.Withdraw(ctx, order.ID, api.WithdrawRequest{
					Requester: who,
					Items:     items,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Withdrawal %s recorded (%d line(s))\n", receipt.ID, len(receipt.Lines))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&requester, "requester", "", "Requester name (defaults to --actor)")
	return cmd
}
