package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"savesync/internal/preflight"
)

func newStatusCommand(cmdCtx *commandContext) *cobra.Command {
	var runChecks bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show queue health and configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.loadConfig()
			if err != nil {
				return err
			}
			q, store, err := openQueue(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			defer func() { _ = q.Close() }()

			st := q.GetStatus()
			rows := [][]string{
				{"Provider", providerLabel(cfg.Provider.Name, cfg.Provider.Enabled)},
				{"Queue database", store.Path()},
				{"Queued operations", strconv.Itoa(st.Total)},
				{"Pending", strconv.Itoa(st.Pending)},
				{"Awaiting retry", strconv.Itoa(st.Failed)},
				{"Max queue size", strconv.Itoa(cfg.Queue.MaxQueueSize)},
				{"Compression", boolLabel(cfg.Features.Compression)},
				{"Network monitoring", boolLabel(cfg.Features.NetworkMonitoring)},
				{"Auto retry", boolLabel(cfg.Features.AutoRetry)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))

			if runChecks {
				checkRows := make([][]string, 0, 4)
				for _, result := range preflight.Run(cmd.Context(), cfg) {
					checkRows = append(checkRows, []string{
						result.Name,
						passLabel(result.Passed),
						result.Detail,
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Check", "Status", "Detail"},
					checkRows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&runChecks, "checks", false, "run environment preflight checks")
	return cmd
}

func passLabel(passed bool) string {
	if passed {
		return "pass"
	}
	return "fail"
}

func providerLabel(name string, enabled bool) string {
	if !enabled {
		return name + " (disabled)"
	}
	return name
}

func boolLabel(value bool) string {
	if value {
		return "enabled"
	}
	return "disabled"
}
