package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scrivener/internal/logging"
	"scrivener/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "watch <input_directory>",
		Short: "Run the pipeline, then keep transcribing images as they appear",
		Long: `Run the pipeline once over the input directory, then watch it for new images.
New files are added to the tracking state and the pipeline runs again once
events settle for watch.debounce_ms. Stop with Ctrl-C; unfinished images stay
pending for the next run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := openApp(runCtx, cfg, logger, args[0])
			if err != nil {
				return err
			}
			defer a.Close()

			inputDir := args[0]
			first := true
			run := func(ctx context.Context) error {
				result, err := runOnce(ctx, a, inputDir, reset && first)
				first = false
				if err != nil {
					return err
				}
				renderRunSummary(cmd.OutOrStdout(), result)
				return nil
			}

			w := watch.New(inputDir, a.store, run, cfg.WatchDebounce(), logger)
			if err := w.Run(runCtx); err != nil {
				return err
			}
			logger.Info("watch finished", logging.String("input_dir", inputDir))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "new", false, "Discard existing tracking state before the first pass")
	return cmd
}
