// Package fileutil holds small filesystem helpers shared by the tracking
// store, the preprocessor and the transcript writer.
package fileutil
