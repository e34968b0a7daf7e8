package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"savesync/internal/config"
	"savesync/internal/queue"
)

func newQueueCommand(cmdCtx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the durable operation queue",
	}
	cmd.AddCommand(
		newQueueListCommand(cmdCtx),
		newQueueClearCommand(cmdCtx),
		newQueueClearFailedCommand(cmdCtx),
		newQueueRetryCommand(cmdCtx),
	)
	return cmd
}

func openQueue(cfg *config.Config) (*queue.Queue, *queue.Store, error) {
	store, err := queue.OpenStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	q, err := queue.New(queue.Options{
		Store:        store,
		MaxQueueSize: cfg.Queue.MaxQueueSize,
		MaxRetries:   cfg.Queue.MaxRetries,
	})
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return q, store, nil
}

func newQueueListCommand(cmdCtx *commandContext) *cobra.Command {
	var asJSON bool
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued operations",
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

			ops := q.List()
			if owner != "" {
				ops = q.ListByOwner(owner)
			}

			if asJSON {
				records := make([]queue.Record, 0, len(ops))
				for _, op := range ops {
					records = append(records, op.ToRecord())
				}
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(records)
			}

			if len(ops) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "queue is empty")
				return nil
			}
			rows := make([][]string, 0, len(ops))
			for _, op := range ops {
				slot := "-"
				if op.Metadata.SlotNumber != nil {
					slot = strconv.Itoa(*op.Metadata.SlotNumber)
				}
				rows = append(rows, []string{
					op.ID[:8],
					string(op.Type),
					op.Metadata.OwnerID,
					slot,
					strconv.Itoa(op.Priority),
					fmt.Sprintf("%d/%d", op.RetryCount, op.MaxRetries),
					op.CreatedAt.Local().Format(time.RFC3339),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Type", "Owner", "Slot", "Priority", "Retries", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit operations as JSON")
	cmd.Flags().StringVar(&owner, "owner", "", "filter by owner identifier")
	return cmd
}

func newQueueClearCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every queued operation",
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

			before := q.GetStatus().Total
			if err := q.Clear(context.Background()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d operation(s)\n", before)
			return nil
		},
	}
}

func newQueueClearFailedCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-failed",
		Short: "Remove operations that have failed at least once",
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

			removed, err := q.ClearFailed(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d failed operation(s)\n", removed)
			return nil
		},
	}
}

func newQueueRetryCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Reset failed operations so the next drain attempts them",
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

			reset, err := q.RetryFailed(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reset %d operation(s)\n", reset)
			return nil
		},
	}
}
