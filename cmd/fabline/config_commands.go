package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fabline/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigPathCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "show",
		Short:       "Print the resolved configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, usedDefaults, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if usedDefaults {
				fmt.Fprintln(out, "No config file found; showing defaults.")
			} else {
				fmt.Fprintf(out, "Loaded from %s\n", resolved)
			}
			fmt.Fprintf(out, "data_dir        = %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "log_dir         = %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "api_bind        = %s\n", cfg.Paths.APIBind)
			fmt.Fprintf(out, "api_token set   = %s\n", yesNo(strings.TrimSpace(cfg.Paths.APIToken) != ""))
			fmt.Fprintf(out, "restricted_role = %s\n", cfg.Workflow.RestrictedRole)
			fmt.Fprintf(out, "log_format      = %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "log_level       = %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "ntfy_topic set  = %s\n", yesNo(strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""))
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	return cmd
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "path",
		Short:       "Print the config file path in effect",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			_, resolved, usedDefaults, err := config.Load("")
			if err != nil {
				return err
			}
			if usedDefaults {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (not created yet)\n", defaultPath)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), resolved)
			return nil
		},
	}
}
