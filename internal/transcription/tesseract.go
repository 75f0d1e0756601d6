//go:build tesseract

package transcription

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"scrivener/internal/services"
)

// TesseractBackend runs local OCR. It ignores the prompt, so context files
// have no effect with this provider.
type TesseractBackend struct {
	languages []string
}

// NewTesseract constructs a backend for the given "+"-separated language list.
func NewTesseract(language string) (Backend, error) {
	var langs []string
	for _, lang := range strings.Split(language, "+") {
		if lang = strings.TrimSpace(lang); lang != "" {
			langs = append(langs, lang)
		}
	}
	return &TesseractBackend{languages: langs}, nil
}

func (t *TesseractBackend) Name() string { return "tesseract" }

func (t *TesseractBackend) Transcribe(ctx context.Context, in Input) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()
	if len(t.languages) > 0 {
		if err := client.SetLanguage(t.languages...); err != nil {
			return "", services.Wrap(services.ErrConfiguration, stageName, "tesseract", "set language", err)
		}
	}
	if err := client.SetImageFromBytes(in.Image); err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "tesseract", "set image", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, stageName, "tesseract", "recognize text", err)
	}
	return text, nil
}

func (t *TesseractBackend) HealthCheck(ctx context.Context) error {
	client := gosseract.NewClient()
	defer client.Close()
	if strings.TrimSpace(client.Version()) == "" {
		return services.Wrap(services.ErrConfiguration, stageName, "tesseract", "library version unavailable", nil)
	}
	return nil
}
