package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"fabline/internal/apiclient"
	"fabline/internal/daemon"
	"fabline/internal/logging"
	"fabline/internal/notifications"
	"fabline/internal/orders"
	"fabline/internal/workflow"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon operations",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the fabline daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := orders.Open(cfg)
			if err != nil {
				return fmt.Errorf("open order store: %w", err)
			}

			engine := workflow.NewEngine(cfg, store, logger, notifications.NewService(cfg))
			d, err := daemon.New(cfg, store, logger, engine)
			if err != nil {
				store.Close()
				return err
			}
			defer d.Close()

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "fabline daemon listening on %s\n", d.APIAddr())
			<-runCtx.Done()
			d.Stop()
			return nil
		},
	}
}

func newDaemonStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and order health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			client := apiclient.New(cmdCtx.apiAddress(cfg), cfg.Paths.APIToken)
			status, err := client.Status(cmd.Context())
			if err != nil {
				return fmt.Errorf("daemon unreachable: %w", err)
			}
			if jsonOut {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:   %s\n", yesNo(status.Running))
			fmt.Fprintf(out, "PID:       %d\n", status.PID)
			fmt.Fprintf(out, "Database:  %s\n", status.DatabasePath)
			fmt.Fprintf(out, "Lock file: %s\n", status.LockFilePath)
			fmt.Fprintf(out, "Orders:    %d total, %d in progress, %d with issues, %d shipped\n",
				status.Health.Total, status.Health.InProgress, status.Health.WithIssues, status.Health.Shipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON instead of text")
	return cmd
}
