// Package watch keeps the pipeline running against an input directory,
// seeding newly created images into tracking and re-running the pipeline
// once a burst of filesystem events settles.
package watch
