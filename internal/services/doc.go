// Package services defines shared utilities consumed by the pipeline stages
// and the transcription backends.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, image names and retry
//     attempts for logging.
//   - Structured error markers plus the Wrap helper so callers can tell a
//     transient failure (retry) from a permanent one (skip) without parsing
//     messages.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
