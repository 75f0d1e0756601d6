package pipeline

import (
	"context"
	"strings"

	"scrivener/internal/fileutil"
	"scrivener/internal/imageref"
	"scrivener/internal/logging"
	"scrivener/internal/services"
	"scrivener/internal/textutil"
	"scrivener/internal/tracking"
	"scrivener/internal/transcription"
)

// preprocessItem normalizes one source image and moves it to the
// transcription list. Failures leave the source in the preprocess list.
func (o *Orchestrator) preprocessItem(ctx context.Context, ref imageref.Reference) (itemResult, error) {
	dropped, err := o.dropIfMissing(ctx, tracking.ListPreprocess, ref)
	if err != nil {
		return itemResult{}, err
	}
	if dropped {
		return itemResult{status: itemMissing}, nil
	}

	out, err := o.deps.Preprocessor.Process(ctx, ref)
	if err != nil {
		if ctx.Err() == nil {
			o.logItemFailure(ctx, "preprocessing failed", err)
		}
		return itemResult{status: itemFailed, err: err}, nil
	}
	// Completed work is recorded even if the run is being interrupted.
	if err := o.deps.Store.Transfer(context.WithoutCancel(ctx), tracking.ListPreprocess, ref.Path, tracking.ListTranscribe, out.Path); err != nil {
		return itemResult{}, err
	}
	return itemResult{status: itemSucceeded}, nil
}

// transcribeItem resolves context, transcribes, cleans and persists one
// processed image. The tracking entry is removed only after the transcript
// is on disk.
func (o *Orchestrator) transcribeItem(ctx context.Context, ref imageref.Reference) (itemResult, error) {
	dropped, err := o.dropIfMissing(ctx, tracking.ListTranscribe, ref)
	if err != nil {
		return itemResult{}, err
	}
	if dropped {
		return itemResult{status: itemMissing}, nil
	}

	bundle := o.deps.Resolver.Resolve(ctx, ref)
	text, err := o.deps.Transcriber.Transcribe(ctx, transcription.Request{Image: ref, Fragment: bundle.Fragment()})
	if err != nil {
		if ctx.Err() == nil {
			o.logItemFailure(ctx, "transcription failed", err)
		}
		return itemResult{status: itemFailed, err: err}, nil
	}

	text = o.clean(ctx, textutil.NormalizeTranscript(text))
	if strings.TrimSpace(text) == "" {
		err := services.Wrap(services.ErrValidation, string(StateTranscribe), "persist", "transcript is empty", nil)
		o.logItemFailure(ctx, "transcription produced no text", err)
		return itemResult{status: itemFailed, err: err}, nil
	}

	path := o.TranscriptPath(ref)
	if err := fileutil.WriteAtomic(path, []byte(text), 0o644); err != nil {
		err = services.Wrap(services.ErrTransient, string(StateTranscribe), "persist", ref.Stem+".txt", err)
		o.logItemFailure(ctx, "writing transcript failed", err)
		return itemResult{status: itemFailed, err: err}, nil
	}
	if err := o.deps.Store.MarkDone(context.WithoutCancel(ctx), tracking.ListTranscribe, ref.Path); err != nil {
		return itemResult{}, err
	}
	logging.WithContext(ctx, o.logger).Info("transcript written",
		logging.String("context", bundle.Sources()),
		logging.String("output", path),
		logging.Int("chars", len(text)),
	)
	return itemResult{status: itemSucceeded}, nil
}

func (o *Orchestrator) clean(ctx context.Context, text string) string {
	if o.deps.Cleaner == nil || text == "" {
		return text
	}
	result := o.deps.Cleaner.Clean(text)
	for _, f := range result.Findings {
		attrs := []logging.Attr{
			logging.String("position", string(f.Position)),
			logging.Int("line", f.Line),
			logging.Float64("similarity", f.Similarity),
			logging.Bool("removed", f.Removed),
		}
		if f.Removed {
			logging.WithContext(ctx, o.logger).Info("removed filler line", logging.Args(attrs...)...)
			continue
		}
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "transcript flagged for review", "filler_suspected",
			append(attrs,
				logging.String("text", f.Text),
				logging.String(logging.FieldErrorHint, "check the first and last lines of the transcript"),
				logging.String(logging.FieldImpact, "line kept in transcript"),
			)...,
		)
	}
	if !result.Changed() {
		return text
	}
	return textutil.NormalizeTranscript(result.Text)
}
