// Package promptctx resolves the textual context injected into each
// transcription prompt.
//
// A global file applies to every image; an optional per-image file, named
// after the image stem, adds document-specific hints. The resolver merges
// them in that order into a single fragment.
package promptctx
