// Package main hosts the scrivener CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once per invocation, wires
// the tracking store, transcription client and orchestrator together, and
// renders results as tables (go-pretty) or JSON/YAML. Exit codes follow the
// run outcome: 0 when every image was transcribed, 2 when work remains
// pending, 1 on fatal errors.
//
// Keep this package thin: behavior belongs in internal packages and is only
// surfaced here through commands and flags.
package main
