package pipeline

import (
	"context"
	"time"

	"scrivener/internal/imageref"
	"scrivener/internal/promptctx"
	"scrivener/internal/tracking"
	"scrivener/internal/transcription"
)

// State is a step of the run state machine.
type State string

const (
	StateDiscover   State = "DISCOVER"
	StatePreprocess State = "PREPROCESS"
	StateTranscribe State = "TRANSCRIBE"
	StateFinalize   State = "FINALIZE"
	StateSuccess    State = "SUCCESS"
	StatePartial    State = "PARTIAL"
)

// Preprocessor normalizes one source image and returns the processed copy.
type Preprocessor interface {
	Process(ctx context.Context, ref imageref.Reference) (imageref.Reference, error)
}

// ContextResolver returns the context that applies to an image.
type ContextResolver interface {
	Resolve(ctx context.Context, ref imageref.Reference) promptctx.Bundle
}

// Transcriber turns a processed image into text.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcription.Request) (string, error)
}

// Progress receives per-stage and per-image updates for display.
type Progress interface {
	StageStarted(state State, total int)
	ItemFinished(state State, image string, err error)
	StageFinished(state State, summary StageSummary)
}

type nopProgress struct{}

func (nopProgress) StageStarted(State, int) {}
func (nopProgress) ItemFinished(State, string, error) {}
func (nopProgress) StageFinished(State, StageSummary) {}

// Failure describes one image that did not complete a stage.
type Failure struct {
	Image    string `json:"image"`
	Kind     string `json:"kind"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error"`
}

// StageSummary counts per-image outcomes within one stage. Skipped images
// were never attempted because the run was interrupted; missing images were
// dropped from tracking because their file no longer exists.
type StageSummary struct {
	Stage     State     `json:"stage"`
	Total     int       `json:"total"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Skipped   int       `json:"skipped"`
	Missing   int       `json:"missing"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Result describes a completed run.
type Result struct {
	RunID       string          `json:"run_id"`
	Outcome     State           `json:"outcome"`
	States      []State         `json:"states"`
	Resumed     bool            `json:"resumed"`
	Interrupted bool            `json:"interrupted"`
	Discovered  int             `json:"discovered"`
	Preprocess  StageSummary    `json:"preprocess"`
	Transcribe  StageSummary    `json:"transcribe"`
	Remaining   tracking.Counts `json:"remaining"`
	Duration    time.Duration   `json:"duration"`
}

// Success reports whether every image was transcribed and tracking was cleared.
func (r Result) Success() bool {
	return r.Outcome == StateSuccess
}

// RunOptions control a single invocation.
type RunOptions struct {
	// Reset discards existing tracking state and rescans the input directory.
	Reset bool
	// RunID correlates log lines; empty leaves it unset.
	RunID string
}
