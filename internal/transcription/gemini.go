package transcription

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"scrivener/internal/services"
)

// GeminiConfig captures the settings needed to reach the Gemini API.
type GeminiConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiBackend transcribes images with a Gemini multimodal model.
type GeminiBackend struct {
	client *genai.Client
	model  string
}

// NewGemini constructs a Gemini backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "gemini", "api key required", nil)
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "gemini", "create client", err)
	}
	return &GeminiBackend{client: client, model: strings.TrimSpace(cfg.Model)}, nil
}

func (g *GeminiBackend) Name() string { return "gemini" }

// Transcribe sends the image bytes inline followed by the prompt.
func (g *GeminiBackend) Transcribe(ctx context.Context, in Input) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(in.Image, in.MIMEType),
			genai.NewPartFromText(in.Prompt),
		}, genai.RoleUser),
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	return extractGeminiText(result)
}

// HealthCheck looks up the configured model, which validates the API key
// without spending generation quota.
func (g *GeminiBackend) HealthCheck(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return classifyGeminiError(err)
	}
	return nil
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "gemini", StatusCode: apiErr.Code, Message: firstNonEmpty(apiErr.Message, apiErr.Status)}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{Provider: "gemini", StatusCode: apiErrPtr.Code, Message: firstNonEmpty(apiErrPtr.Message, apiErrPtr.Status)}
	}
	return services.Wrap(services.ErrTransient, stageName, "gemini", "request failed", err)
}

// blockedFinishReasons end generation in a way retries will not change.
var blockedFinishReasons = map[string]struct{}{
	"SAFETY":             {},
	"RECITATION":         {},
	"BLOCKLIST":          {},
	"PROHIBITED_CONTENT": {},
	"SPII":               {},
}

func extractGeminiText(result *genai.GenerateContentResponse) (string, error) {
	if result == nil {
		return "", services.Wrap(services.ErrTransient, stageName, "gemini", "empty response", nil)
	}
	if fb := result.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return "", services.Wrap(services.ErrPermanent, stageName, "gemini",
			"prompt blocked: "+string(fb.BlockReason), nil)
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", services.Wrap(services.ErrTransient, stageName, "gemini", "empty response", nil)
	}
	candidate := result.Candidates[0]
	if _, blocked := blockedFinishReasons[string(candidate.FinishReason)]; blocked {
		return "", services.Wrap(services.ErrPermanent, stageName, "gemini",
			"generation stopped: "+string(candidate.FinishReason), nil)
	}
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}
	return text.String(), nil
}
