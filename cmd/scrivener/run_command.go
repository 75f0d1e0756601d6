package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scrivener/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var reset bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "run <input_directory>",
		Short: "Preprocess and transcribe every image in a directory",
		Long: `Discover images in the input directory, normalize them and send each one
to the configured transcription backend. Progress is tracked in the state
directory: rerunning after a partial run resumes with the images that did not
finish. Use --new to discard that state and start over.

Exit status is 0 when every image was transcribed, 2 when some images remain
pending, and 1 on fatal errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var opts []pipeline.Option
			if !noProgress && stderrIsTerminal() {
				opts = append(opts, pipeline.WithProgress(newBarProgress(cmd.ErrOrStderr())))
			}
			a, err := openApp(runCtx, cfg, logger, args[0], opts...)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := runOnce(runCtx, a, args[0], reset)
			if err != nil {
				return err
			}
			renderRunSummary(cmd.OutOrStdout(), result)
			if !result.Success() {
				return &exitError{code: exitPartial}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "new", false, "Discard existing tracking state and rescan the input directory")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func runOnce(ctx context.Context, a *app, inputDir string, reset bool) (pipeline.Result, error) {
	return a.orchestrator.Run(ctx, inputDir, pipeline.RunOptions{
		Reset: reset,
		RunID: uuid.NewString(),
	})
}
