package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fabline/internal/orderaccess"
)

func newShowCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <order>",
		Short: "Show the workflow board for an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withSession(cmd, func(ctx context.Context, access orderaccess.Access) error {
				order, err := resolveOrder(ctx, access, args[0])
				if err != nil {
					return err
				}
				view, err := access.Workflow(ctx, order.ID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, view)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Order %s", view.Order.Reference)
				if view.Order.Customer != "" {
					fmt.Fprintf(out, " for %s", view.Order.Customer)
				}
				fmt.Fprintf(out, " -- %s, %s complete", view.Order.Status, formatPercent(view.Progress.Percent))
				if view.Progress.HasIssue {
					fmt.Fprint(out, ", has open issues")
				}
				fmt.Fprintln(out)

				rows := make([][]string, 0, len(view.Steps))
				for i, step := range view.Steps {
					remark := step.Remark
					if step.Status == "complete" && remark == "" {
						remark = "-"
					}
					rows = append(rows, []string{
						fmt.Sprintf("%d", i+1),
						step.Title,
						stepStateCell(step.Status, step.Locked, step.Skipped),
						fmt.Sprintf("%d", len(step.Images)),
						step.UpdatedBy,
						remark,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"#", "Step", "Status", "Images", "By", "Remark"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of a table")
	return cmd
}
