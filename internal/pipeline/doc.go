// Package pipeline runs the transcription state machine
// DISCOVER → PREPROCESS → TRANSCRIBE → FINALIZE, ending in SUCCESS or PARTIAL.
//
// All progress lives in the tracking store. Each stage reads its pending
// list, processes images (optionally across several workers) and mutates
// the store only after the stage's output is durable: a source leaves the
// preprocess list when its normalized copy is written, and a processed image
// leaves the transcription list when its transcript is on disk. A failing
// image stays pending and never stops the others, so rerunning without
// --new resumes exactly where the previous run stopped. When both lists
// drain, finalization deletes the tracking files.
//
// Only tracking I/O and discovery failures abort a run.
package pipeline
