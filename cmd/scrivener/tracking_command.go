package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scrivener/internal/tracking"
)

func newTrackingCommand(ctx *commandContext) *cobra.Command {
	trackingCmd := &cobra.Command{
		Use:   "tracking",
		Short: "Inspect or reset tracking state",
	}
	trackingCmd.AddCommand(newTrackingClearCommand(ctx))
	return trackingCmd
}

func newTrackingClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete tracking state so the next run rescans its input directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}
			lock, err := tracking.AcquireLock(cfg.LockPath())
			if err != nil {
				if errors.Is(err, tracking.ErrLocked) {
					return fmt.Errorf("%w; refusing to clear state while a run is active", err)
				}
				return err
			}
			defer lock.Release()

			store, err := tracking.Open(cfg, logger)
			if err != nil {
				return fmt.Errorf("open tracking store: %w", err)
			}
			defer store.Close()

			counts, err := store.Counts(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s tracking state (%d pending preprocess, %d pending transcribe)\n",
				store.Backend(), counts.Preprocess, counts.Transcribe)
			return nil
		},
	}
}
