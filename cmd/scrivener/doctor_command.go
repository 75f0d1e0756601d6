package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scrivener/internal/preflight"
	"scrivener/internal/transcription"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check directories, credentials and the transcription backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}

			var checker preflight.HealthChecker
			var setupErr error
			if !offline {
				client, err := transcription.NewFromConfig(cmd.Context(), cfg, logger)
				if err == nil {
					checker = client
				} else if cfg.RequireCredentials() == nil {
					// Missing credentials already show up as their own check.
					setupErr = err
				}
			}

			results := preflight.RunAll(cmd.Context(), cfg, checker)
			if setupErr != nil {
				results = append(results, preflight.Result{Name: "Transcription backend", Detail: setupErr.Error()})
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				status := "OK"
				if !r.Passed {
					status = "FAIL"
				}
				rows = append(rows, []string{r.Name, status, r.Detail})
			}
			out := cmd.OutOrStdout()
			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			}
			fmt.Fprintln(out, renderTable("", []string{"Check", "Status", "Detail"}, rows, nil))

			if !preflight.Passed(results) {
				return &exitError{code: exitFatal, msg: "one or more checks failed"}
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the transcription backend health check")
	return cmd
}
