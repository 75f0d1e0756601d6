//go:build !tesseract

package transcription

import "scrivener/internal/services"

// NewTesseract reports that local OCR support was not compiled in.
func NewTesseract(string) (Backend, error) {
	return nil, services.Wrap(services.ErrConfiguration, stageName, "tesseract",
		"built without tesseract support (rebuild with -tags tesseract)", nil)
}
