package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"savesync/internal/config"
	"savesync/internal/logging"
)

type commandContext struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	cmdCtx := &commandContext{}

	cmd := &cobra.Command{
		Use:           "savesync",
		Short:         "Offline-resilient cloud save synchronization",
		Long:          "savesync keeps game save data synchronized with a cloud provider,\nqueuing operations durably while offline and draining them when\nconnectivity returns.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&cmdCtx.configPath, "config", "", "path to the configuration file")

	cmd.AddCommand(
		newRunCommand(cmdCtx),
		newStatusCommand(cmdCtx),
		newQueueCommand(cmdCtx),
		newConfigCommand(cmdCtx),
	)
	return cmd
}

func (c *commandContext) loadConfig() (*config.Config, error) {
	cfg, _, _, err := config.Load(c.configPath)
	return cfg, err
}

func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: os.Stderr,
	})
}
