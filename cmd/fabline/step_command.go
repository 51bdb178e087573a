package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fabline/internal/api"
	"fabline/internal/orderaccess"
)

func newStepCommand(cmdCtx *commandContext) *cobra.Command {
	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "Step operations",
	}
	stepCmd.AddCommand(newStepUpdateCommand(cmdCtx))
	stepCmd.AddCommand(newStepReopenCommand(cmdCtx))
	return stepCmd
}

func newStepUpdateCommand(cmdCtx *commandContext) *cobra.Command {
	var status string
	var remark string
	var addImages []string
	var removeImages []string
	var boxCount int
	var carrier string
	var tracking string

	cmd := &cobra.Command{
		Use:   "update <order> <step>",
		Short: "Apply a step transition",
		Long: `Apply a step transition. Status must be one of in_progress, issue, or
complete. Issue reports require --remark; completion requires at least one
image except on the delivery slip step.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.StepUpdateRequest{
				Status:       status,
				Remark:       remark,
				AddImages:    addImages,
				RemoveImages: removeImages,
			}
			if cmd.Flags().Changed("boxes") {
				req.BoxCount = &boxCount
			}
			if cmd.Flags().Changed("carrier") {
				req.CarrierName = &carrier
			}
			if cmd.Flags().Changed("tracking") {
				req.TrackingNumber = &tracking
			}

			return cmdCtx.withSession(cmd, func(ctx context.Context, access orderaccess.Access) error {
				order, err := resolveOrder(ctx, access, args[0])
				if err != nil {
					return err
				}
				step, err := access.UpdateStep(ctx, order.ID, args[1], req, cmdCtx.actor())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", step.Title, humanizeStatus(step.Status))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Target status (in_progress, issue, complete)")
	cmd.Flags().StringVar(&remark, "remark", "", "Remark text (required for issue reports)")
	cmd.Flags().StringSliceVar(&addImages, "image", nil, "Image reference to attach (repeatable)")
	cmd.Flags().StringSliceVar(&removeImages, "remove-image", nil, "Image reference to detach (repeatable)")
	cmd.Flags().IntVar(&boxCount, "boxes", 0, "Box count (packing step only)")
	cmd.Flags().StringVar(&carrier, "carrier", "", "Carrier name (shipping step only)")
	cmd.Flags().StringVar(&tracking, "tracking", "", "Tracking number (shipping step only)")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func newStepReopenCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <order> <step>",
		Short: "Return a complete or issue step to in progress",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withSession(cmd, func(ctx context.Context, access orderaccess.Access) error {
				order, err := resolveOrder(ctx, access, args[0])
				if err != nil {
					return err
				}
				step, err := access.ReopenStep(ctx, order.ID, args[1], cmdCtx.actor())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s reopened\n", step.Title)
				return nil
			})
		},
	}
}
