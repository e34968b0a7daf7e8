package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"savesync/internal/config"
)

func newConfigCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage savesync configuration",
	}
	cmd.AddCommand(
		newConfigInitCommand(cmdCtx),
		newConfigShowCommand(cmdCtx),
	)
	return cmd
}

func newConfigInitCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := cmdCtx.configPath
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			expanded, err := config.ExpandPath(path)
			if err != nil {
				return err
			}
			if err := config.CreateSample(expanded); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote sample configuration to %s\n", expanded)
			return nil
		},
	}
}

func newConfigShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration with credentials redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, found, err := config.Load(cmdCtx.configPath)
			if err != nil {
				return err
			}
			source := path
			if !found {
				source = "(defaults; no config file found)"
			}

			rows := [][]string{
				{"Source", source},
				{"Provider", providerLabel(cfg.Provider.Name, cfg.Provider.Enabled)},
				{"Data directory", cfg.Paths.DataDir},
				{"Log directory", cfg.Paths.LogDir},
				{"Ping URL", cfg.Network.PingURL},
				{"Ping interval (ms)", fmt.Sprint(cfg.Network.PingIntervalMS)},
				{"Max queue size", fmt.Sprint(cfg.Queue.MaxQueueSize)},
				{"Retry delay (ms)", fmt.Sprint(cfg.Queue.RetryDelayMS)},
				{"Max retry delay (ms)", fmt.Sprint(cfg.Queue.MaxRetryDelayMS)},
				{"Max retries", fmt.Sprint(cfg.Queue.MaxRetries)},
				{"Concurrency", fmt.Sprint(cfg.Queue.ProcessingConcurrency)},
				{"Compression", boolLabel(cfg.Features.Compression)},
				{"Offline queue", boolLabel(cfg.Features.OfflineQueue)},
				{"Network monitoring", boolLabel(cfg.Features.NetworkMonitoring)},
				{"Auto retry", boolLabel(cfg.Features.AutoRetry)},
				{"Credentials", credentialLabel(cfg)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Setting", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func credentialLabel(cfg *config.Config) string {
	switch cfg.Provider.Name {
	case "firebase":
		if cfg.Provider.Firebase.APIKey != "" {
			return "configured (redacted)"
		}
	case "supabase":
		if cfg.Provider.Supabase.APIKey != "" {
			return "configured (redacted)"
		}
	case "s3":
		if cfg.Provider.S3.SecretAccessKey != "" {
			return "configured (redacted)"
		}
	}
	return "not configured"
}
