// Package language normalizes the OCR language setting. Users may write ISO
// 639-1 codes, ISO 639-2 codes or plain names ("en", "fre", "german"); the
// tesseract backend needs its traineddata names ("eng", "fra", "deu"), joined
// with "+" when several languages are combined.
package language
