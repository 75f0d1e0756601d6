package transcription

import (
	"context"

	"scrivener/internal/config"
	"scrivener/internal/services"
)

// NewBackend constructs the backend selected by transcription.provider.
func NewBackend(ctx context.Context, cfg *config.Config) (Backend, error) {
	t := cfg.Transcription
	switch t.Provider {
	case config.ProviderGemini:
		backend, err := NewGemini(ctx, GeminiConfig{
			APIKey:  t.APIKey,
			Model:   t.Model,
			BaseURL: t.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.ProviderOpenRouter:
		return NewOpenRouter(OpenRouterConfig{
			APIKey:  t.APIKey,
			BaseURL: t.BaseURL,
			Model:   t.Model,
			Referer: t.Referer,
			Title:   t.Title,
		}), nil
	case config.ProviderTesseract:
		return NewTesseract(t.TesseractLanguage)
	default:
		return nil, services.Wrap(services.ErrConfiguration, stageName, "select backend",
			"unknown provider "+t.Provider, nil)
	}
}
