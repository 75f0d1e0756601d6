// Package postprocess strips conversational filler from model transcripts.
package postprocess
