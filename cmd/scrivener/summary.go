package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"scrivener/internal/pipeline"
)

func renderRunSummary(w io.Writer, result pipeline.Result) {
	rows := make([][]string, 0, 2)
	for _, s := range []pipeline.StageSummary{result.Preprocess, result.Transcribe} {
		rows = append(rows, []string{
			string(s.Stage),
			strconv.Itoa(s.Total),
			strconv.Itoa(s.Succeeded),
			strconv.Itoa(s.Failed),
			strconv.Itoa(s.Skipped),
			strconv.Itoa(s.Missing),
		})
	}
	fmt.Fprintln(w, renderTable("", []string{"Stage", "Pending", "Done", "Failed", "Skipped", "Missing"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight}))

	failures := append(append([]pipeline.Failure(nil), result.Preprocess.Failures...), result.Transcribe.Failures...)
	if len(failures) > 0 {
		frows := make([][]string, 0, len(failures))
		for _, f := range failures {
			frows = append(frows, []string{f.Image, f.Kind, strconv.Itoa(f.Attempts), f.Error})
		}
		fmt.Fprintln(w, renderTable("Failures", []string{"Image", "Reason", "Attempts", "Error"}, frows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
	}

	fmt.Fprintf(w, "Outcome: %s (%s images discovered, resumed: %s, took %s)\n",
		result.Outcome, humanize.Comma(int64(result.Discovered)), yesNo(result.Resumed), result.Duration.Round(time.Millisecond))
	if result.Interrupted {
		fmt.Fprintln(w, "Run interrupted; unfinished images stay pending.")
	}
	if result.Outcome == pipeline.StatePartial {
		fmt.Fprintf(w, "Pending: %d to preprocess, %d to transcribe. Rerun the same command to resume.\n",
			result.Remaining.Preprocess, result.Remaining.Transcribe)
	}
}
