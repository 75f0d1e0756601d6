package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"scrivener/internal/tracking"
)

type statusView struct {
	Backend      string          `json:"backend" yaml:"backend"`
	Started      bool            `json:"started" yaml:"started"`
	SourceDir    string          `json:"source_dir,omitempty" yaml:"source_dir,omitempty"`
	DiscoveredAt *time.Time      `json:"discovered_at,omitempty" yaml:"discovered_at,omitempty"`
	Pending      tracking.Counts `json:"pending" yaml:"pending"`
	Preprocess   []string        `json:"preprocess" yaml:"preprocess"`
	Transcribe   []string        `json:"transcribe" yaml:"transcribe"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pending work recorded in the tracking state",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := validateOutputFormat(output)
			if err != nil {
				return err
			}
			cfg, logger, err := ctx.configAndLogger()
			if err != nil {
				return err
			}
			store, err := tracking.Open(cfg, logger)
			if err != nil {
				return fmt.Errorf("open tracking store: %w", err)
			}
			defer store.Close()

			snap, err := store.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			view := newStatusView(snap)
			if handled, err := writeStructured(cmd, format, view); handled {
				return err
			}
			renderStatus(cmd, view, time.Now())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "Output format: table, json or yaml")
	return cmd
}

func newStatusView(snap tracking.Snapshot) statusView {
	view := statusView{
		Backend:    snap.Backend,
		Started:    snap.Started,
		SourceDir:  snap.State.SourceDir,
		Pending:    snap.Counts(),
		Preprocess: nonNil(snap.Preprocess),
		Transcribe: nonNil(snap.Transcribe),
	}
	if !snap.State.DiscoveredAt.IsZero() {
		at := snap.State.DiscoveredAt
		view.DiscoveredAt = &at
	}
	return view
}

func renderStatus(cmd *cobra.Command, view statusView, now time.Time) {
	out := cmd.OutOrStdout()
	if !view.Started {
		fmt.Fprintf(out, "No tracking state (%s backend). The next run scans its input directory.\n", view.Backend)
		return
	}

	discovered := "unknown"
	if view.DiscoveredAt != nil {
		discovered = fmt.Sprintf("%s (%s)", view.DiscoveredAt.Local().Format(time.DateTime), humanize.RelTime(*view.DiscoveredAt, now, "ago", "from now"))
	}
	summary := [][]string{
		{"Backend", view.Backend},
		{"Input directory", view.SourceDir},
		{"Discovered", discovered},
		{"Pending preprocess", strconv.Itoa(view.Pending.Preprocess)},
		{"Pending transcribe", strconv.Itoa(view.Pending.Transcribe)},
	}
	fmt.Fprintln(out, renderTable("Tracking", []string{"Field", "Value"}, summary, nil))

	if view.Pending.Total() == 0 {
		return
	}
	rows := make([][]string, 0, view.Pending.Total())
	for _, path := range view.Preprocess {
		rows = append(rows, []string{string(tracking.ListPreprocess), filepath.Base(path), path})
	}
	for _, path := range view.Transcribe {
		rows = append(rows, []string{string(tracking.ListTranscribe), filepath.Base(path), path})
	}
	fmt.Fprintln(out, renderTable("Pending", []string{"List", "Image", "Path"}, rows, nil))
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
