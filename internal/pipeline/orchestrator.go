package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"scrivener/internal/config"
	"scrivener/internal/fileutil"
	"scrivener/internal/imageref"
	"scrivener/internal/logging"
	"scrivener/internal/postprocess"
	"scrivener/internal/services"
	"scrivener/internal/tracking"
	"scrivener/internal/transcription"
)

// Dependencies bundles the collaborators the orchestrator drives.
type Dependencies struct {
	Store        *tracking.Store
	Preprocessor Preprocessor
	Resolver     ContextResolver
	Transcriber  Transcriber
	// Cleaner strips model filler before transcripts are written; nil disables it.
	Cleaner *postprocess.Cleaner
}

// Orchestrator sequences discovery, preprocessing, transcription and
// finalization over the images tracked in the store.
type Orchestrator struct {
	deps          Dependencies
	transcriptDir string
	workers       int
	reverse       bool
	logger        *slog.Logger
	progress      Progress
}

// Option customizes the orchestrator.
type Option func(*Orchestrator)

// WithProgress sets the sink for stage and item updates.
func WithProgress(p Progress) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.progress = p
		}
	}
}

// New constructs an orchestrator from configuration and collaborators.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deps:          deps,
		transcriptDir: cfg.Paths.TranscriptDir,
		workers:       max(1, cfg.Pipeline.Workers),
		reverse:       cfg.Pipeline.ReverseOrder,
		logger:        logging.NewComponentLogger(logger, "pipeline"),
		progress:      nopProgress{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// TranscriptPath returns where the transcript for a processed image is written.
func (o *Orchestrator) TranscriptPath(ref imageref.Reference) string {
	return filepath.Join(o.transcriptDir, ref.Stem+".txt")
}

// Run executes the state machine. Per-image failures are recorded in the
// result and leave the image pending; the returned error is reserved for
// fatal conditions (unreadable input directory, tracking I/O).
func (o *Orchestrator) Run(ctx context.Context, inputDir string, opts RunOptions) (Result, error) {
	start := time.Now()
	if opts.RunID != "" {
		ctx = services.WithRunID(ctx, opts.RunID)
	}
	result := Result{RunID: opts.RunID}
	logger := logging.WithContext(ctx, o.logger)

	o.enter(ctx, &result, StateDiscover)
	started, err := o.deps.Store.Started(ctx)
	if err != nil {
		return result, fmt.Errorf("read tracking state: %w", err)
	}
	result.Resumed = started && !opts.Reset
	discovered, err := o.deps.Store.Discover(ctx, inputDir, opts.Reset)
	if err != nil {
		return result, fmt.Errorf("discover %s: %w", inputDir, err)
	}
	result.Discovered = len(discovered)

	o.enter(ctx, &result, StatePreprocess)
	result.Preprocess, err = o.runStage(ctx, StatePreprocess, tracking.ListPreprocess, o.preprocessItem)
	if err != nil {
		return result, err
	}

	o.enter(ctx, &result, StateTranscribe)
	result.Transcribe, err = o.runStage(ctx, StateTranscribe, tracking.ListTranscribe, o.transcribeItem)
	if err != nil {
		return result, err
	}

	result.Interrupted = ctx.Err() != nil
	// Finalization runs even after an interrupt so the outcome is recorded.
	finalCtx := context.WithoutCancel(ctx)
	o.enter(finalCtx, &result, StateFinalize)
	counts, err := o.deps.Store.Counts(finalCtx)
	if err != nil {
		return result, fmt.Errorf("read tracking counts: %w", err)
	}
	result.Remaining = counts
	if counts.Total() == 0 {
		if err := o.deps.Store.Clear(finalCtx); err != nil {
			return result, err
		}
		result.Outcome = StateSuccess
	} else {
		result.Outcome = StatePartial
	}
	o.enter(finalCtx, &result, result.Outcome)
	result.Duration = time.Since(start)

	logger.Info("run complete",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("outcome", string(result.Outcome)),
		logging.Bool("resumed", result.Resumed),
		logging.Bool("interrupted", result.Interrupted),
		logging.Int("preprocessed", result.Preprocess.Succeeded),
		logging.Int("preprocess_failed", result.Preprocess.Failed),
		logging.Int("transcribed", result.Transcribe.Succeeded),
		logging.Int("transcribe_failed", result.Transcribe.Failed),
		logging.Int("pending_preprocess", counts.Preprocess),
		logging.Int("pending_transcribe", counts.Transcribe),
		logging.Duration("run_duration", result.Duration),
	)
	return result, nil
}

func (o *Orchestrator) enter(ctx context.Context, result *Result, state State) {
	from := "START"
	if n := len(result.States); n > 0 {
		from = string(result.States[n-1])
	}
	result.States = append(result.States, state)
	logging.WithContext(ctx, o.logger).Info("pipeline state",
		logging.String(logging.FieldEventType, "state_transition"),
		logging.String("from", from),
		logging.String("to", string(state)),
	)
}

type itemStatus int

const (
	itemSucceeded itemStatus = iota
	itemFailed
	itemMissing
	itemSkipped
)

type itemResult struct {
	status itemStatus
	err    error
}

// itemFunc processes one image. A non-nil error return is fatal to the run;
// per-image failures are reported through itemResult.
type itemFunc func(ctx context.Context, ref imageref.Reference) (itemResult, error)

func (o *Orchestrator) runStage(ctx context.Context, state State, list tracking.List, fn itemFunc) (StageSummary, error) {
	summary := StageSummary{Stage: state}
	// Read even when interrupted so untouched items are counted as skipped.
	pending, err := o.deps.Store.ReadAll(context.WithoutCancel(ctx), list)
	if err != nil {
		return summary, fmt.Errorf("read %s list: %w", list, err)
	}
	// reverse_order applies to transcription only.
	if o.reverse && state == StateTranscribe {
		pending = slices.Clone(pending)
		slices.Reverse(pending)
	}
	summary.Total = len(pending)

	stageCtx := services.WithStage(ctx, string(state))
	logger := logging.WithContext(stageCtx, o.logger)
	stageStart := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("pending", len(pending)),
		logging.Int("workers", o.workers),
	)
	o.progress.StageStarted(state, len(pending))

	runCtx, cancel := context.WithCancel(stageCtx)
	defer cancel()

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		fatal error
	)
	record := func(ref imageref.Reference, res itemResult) {
		mu.Lock()
		defer mu.Unlock()
		switch res.status {
		case itemSucceeded:
			summary.Succeeded++
		case itemFailed:
			summary.Failed++
			summary.Failures = append(summary.Failures, newFailure(ref, res.err))
		case itemMissing:
			summary.Missing++
		case itemSkipped:
			summary.Skipped++
		}
		o.progress.ItemFinished(state, ref.Base, res.err)
	}

	sem := make(chan struct{}, o.workers)
	for _, ref := range pending {
		if runCtx.Err() != nil {
			record(ref, itemResult{status: itemSkipped})
			continue
		}
		select {
		case sem <- struct{}{}:
		case <-runCtx.Done():
			record(ref, itemResult{status: itemSkipped})
			continue
		}
		wg.Add(1)
		go func(ref imageref.Reference) {
			defer wg.Done()
			defer func() { <-sem }()
			itemCtx := services.WithImage(runCtx, ref.Base)
			res, err := fn(itemCtx, ref)
			if err != nil {
				mu.Lock()
				if fatal == nil {
					fatal = err
					cancel()
				}
				mu.Unlock()
				return
			}
			if res.status == itemFailed && runCtx.Err() != nil {
				res = itemResult{status: itemSkipped}
			}
			record(ref, res)
		}(ref)
	}
	wg.Wait()

	if fatal != nil {
		logging.ErrorWithContext(logger, "stage aborted", "stage_aborted",
			logging.Error(fatal),
			logging.String(logging.FieldErrorHint, "check the state directory is writable and not corrupted"),
		)
		return summary, fatal
	}
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
		logging.Int("skipped", summary.Skipped),
		logging.Int("missing", summary.Missing),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	o.progress.StageFinished(state, summary)
	return summary, nil
}

func newFailure(ref imageref.Reference, err error) Failure {
	f := Failure{Image: ref.Base, Kind: services.Kind(err), Attempts: 1}
	if err != nil {
		f.Error = err.Error()
	}
	var attemptErr *transcription.AttemptError
	if errors.As(err, &attemptErr) {
		f.Attempts = attemptErr.Attempts
	}
	return f
}

// dropIfMissing removes ref from list when its file has vanished. It reports
// whether the entry was dropped.
func (o *Orchestrator) dropIfMissing(ctx context.Context, list tracking.List, ref imageref.Reference) (bool, error) {
	exists, err := fileutil.RegularFileExists(ref.Path)
	if err != nil || exists {
		// Stat failures other than not-exist surface when the file is opened.
		return false, nil
	}
	if err := o.deps.Store.MarkDone(context.WithoutCancel(ctx), list, ref.Path); err != nil {
		return false, err
	}
	logging.WarnWithContext(logging.WithContext(ctx, o.logger), "pending image no longer exists", "image_missing",
		logging.String("path", ref.Path),
		logging.String(logging.FieldErrorHint, "restore the file and rerun with --new to process it"),
		logging.String(logging.FieldImpact, "image dropped from tracking"),
	)
	return true, nil
}

func (o *Orchestrator) logItemFailure(ctx context.Context, msg string, err error) {
	attempts := 1
	var attemptErr *transcription.AttemptError
	if errors.As(err, &attemptErr) {
		attempts = attemptErr.Attempts
	}
	logging.ErrorWithContext(logging.WithContext(ctx, o.logger), msg, "item_failed",
		logging.Int(logging.FieldAttempt, attempts),
		logging.String("reason", services.Kind(err)),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "image stays pending; rerun to retry"),
	)
}
