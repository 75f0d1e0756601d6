// Package tracking persists the pipeline's pending-work lists so that an
// interrupted run can resume where it stopped.
//
// Two lists exist: sources awaiting preprocessing and processed images
// awaiting transcription. Presence of a path in a list means work remains.
// The Store offers discovery, per-item mutations, an atomic transfer between
// lists and terminal cleanup; the backing format is either a SQLite database
// (default) or two line-oriented text files. Both deduplicate on write and
// make every mutation crash-atomic.
//
// AcquireLock guards a state directory against concurrent runs.
package tracking
