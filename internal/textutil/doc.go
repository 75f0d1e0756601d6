// Package textutil holds the text helpers used on model output: transcript
// normalization (NFC, LF line endings, trailing whitespace) and word-frequency
// cosine similarity for spotting conversational filler lines.
package textutil
