package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"scrivener/internal/postprocess"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "clean [transcript_directory]",
		Short: "Strip model filler lines from existing transcripts",
		Long: `Check the first and last line of every .txt file against the configured
filler phrases. Lines above postprocess.removal_threshold are removed; lines
above postprocess.review_threshold are reported for review. Defaults to
paths.transcript_dir.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := validateOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}
			dir := cfg.Paths.TranscriptDir
			if len(args) == 1 {
				dir = args[0]
			}

			reports, err := postprocess.New(cfg.Postprocess).CleanDir(cmd.Context(), dir, logger)
			if err != nil {
				return err
			}
			if reports == nil {
				reports = []postprocess.FileReport{}
			}
			if handled, err := writeStructured(cmd, format, reports); handled {
				return err
			}

			out := cmd.OutOrStdout()
			if len(reports) == 0 {
				fmt.Fprintf(out, "No filler found in %s\n", dir)
				return nil
			}
			rows := make([][]string, 0, len(reports))
			for _, report := range reports {
				for _, f := range report.Findings {
					action := "review"
					if f.Removed {
						action = "removed"
					}
					rows = append(rows, []string{
						filepath.Base(report.Path),
						string(f.Position),
						strconv.Itoa(f.Line),
						strconv.FormatFloat(f.Similarity, 'f', 2, 64),
						action,
						f.Text,
					})
				}
			}
			fmt.Fprintln(out, renderTable("Flagged transcripts", []string{"File", "Position", "Line", "Similarity", "Action", "Text"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	return cmd
}
