// Package transcription turns a preprocessed image and its context fragment
// into text using a remote multimodal model or local OCR.
//
// Client owns the retry loop: each attempt runs under its own timeout,
// retriable failures (network errors, timeouts, HTTP 408/429/5xx and empty
// model output) wait for an exponential backoff, and a server Retry-After
// header replaces the computed wait. RetryPolicy.MaxAttempts is the total
// number of calls, including the first.
//
// Backends:
//   - gemini: google.golang.org/genai with the image sent inline
//   - openrouter: OpenAI-compatible chat completions with a data URL
//   - tesseract: gosseract, only when built with the tesseract tag
package transcription
