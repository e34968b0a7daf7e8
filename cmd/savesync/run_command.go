package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"savesync/internal/daemon"
)

func newRunCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the synchronization daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.loadConfig()
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}

			d, err := daemon.New(cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			status, err := d.Start(ctx)
			if err != nil {
				return err
			}
			for _, warning := range status.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", warning)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "savesync running (provider %s); press Ctrl-C to stop\n", status.Provider)

			<-ctx.Done()
			d.Stop()
			return nil
		},
	}
}
