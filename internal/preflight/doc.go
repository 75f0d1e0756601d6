// Package preflight provides readiness checks for the filesystem paths and
// transcription backend that scrivener depends on.
//
// The "scrivener doctor" command runs RunAll and renders each Result; "run"
// and "watch" use CheckDirectoryAccess on the state and output directories
// before taking the run lock so permission problems surface before any image
// is touched.
package preflight
