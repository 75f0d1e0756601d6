package transcription

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scrivener/internal/services"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterConfig captures the settings required to talk to an
// OpenAI-compatible chat completions endpoint.
type OpenRouterConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Referer    string
	Title      string
	HTTPClient *http.Client
}

// OpenRouterBackend sends images as data URLs in a chat completion request.
type OpenRouterBackend struct {
	cfg        OpenRouterConfig
	httpClient *http.Client
}

// NewOpenRouter constructs the backend. Timeouts come from the request
// context, so the default HTTP client carries none.
func NewOpenRouter(cfg OpenRouterConfig) *OpenRouterBackend {
	backend := &OpenRouterBackend{
		cfg: OpenRouterConfig{
			APIKey:  strings.TrimSpace(cfg.APIKey),
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Model:   strings.TrimSpace(cfg.Model),
			Referer: strings.TrimSpace(cfg.Referer),
			Title:   strings.TrimSpace(cfg.Title),
		},
		httpClient: cfg.HTTPClient,
	}
	if backend.cfg.BaseURL == "" {
		backend.cfg.BaseURL = defaultOpenRouterURL
	}
	if backend.httpClient == nil {
		backend.httpClient = &http.Client{}
	}
	return backend
}

func (b *OpenRouterBackend) Name() string { return "openrouter" }

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema (delta) even when
		// stream=false.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

// Transcribe issues one chat completion with the prompt and the image.
func (b *OpenRouterBackend) Transcribe(ctx context.Context, in Input) (string, error) {
	if b.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, stageName, "openrouter", "api key required", nil)
	}
	dataURL := "data:" + in.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(in.Image)
	payload := chatCompletionRequest{
		Model: b.cfg.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: in.Prompt},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURL}},
			},
		}},
		Temperature: 0,
	}
	completion, body, err := b.send(ctx, payload)
	if err != nil {
		return "", err
	}
	if refusal := extractRefusal(completion); refusal != "" {
		return "", services.Wrap(services.ErrPermanent, stageName, "openrouter", "model refused: "+summarizePayloadSnippet(refusal), nil)
	}
	content, finishReason := extractCompletionContent(completion)
	if content == "" {
		return "", services.Wrap(services.ErrTransient, stageName, "openrouter",
			fmt.Sprintf("empty content (finish_reason=%q, response_snippet=%s)", finishReason, summarizePayloadSnippet(string(body))), nil)
	}
	return content, nil
}

// HealthCheck issues a minimal text-only completion to verify the API key
// and model are usable.
func (b *OpenRouterBackend) HealthCheck(ctx context.Context) error {
	if b.cfg.APIKey == "" {
		return services.Wrap(services.ErrConfiguration, stageName, "openrouter", "api key required", nil)
	}
	payload := chatCompletionRequest{
		Model: b.cfg.Model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: []contentPart{{Type: "text", Text: "Reply with OK."}},
		}},
	}
	completion, _, err := b.send(ctx, payload)
	if err != nil {
		return err
	}
	if content, _ := extractCompletionContent(completion); content == "" {
		return services.Wrap(services.ErrTransient, stageName, "openrouter", "health check returned no content", nil)
	}
	return nil
}

func (b *OpenRouterBackend) send(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, services.Wrap(services.ErrPermanent, stageName, "openrouter", "encode body", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, services.Wrap(services.ErrConfiguration, stageName, "openrouter", "new request", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if b.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", b.cfg.Referer)
		req.Header.Set("Referer", b.cfg.Referer)
	}
	if b.cfg.Title != "" {
		req.Header.Set("X-Title", b.cfg.Title)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return completion, nil, services.Wrap(services.ErrTransient, stageName, "openrouter", "http error", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, services.Wrap(services.ErrTransient, stageName, "openrouter", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return completion, body, &StatusError{
			Provider:   "openrouter",
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, services.Wrap(services.ErrTransient, stageName, "openrouter",
			"decode response: "+summarizePayloadSnippet(string(body)), err)
	}
	// Upstream provider failures arrive as an error object with status 200.
	if completion.Error != nil {
		return completion, body, services.Wrap(services.ErrTransient, stageName, "openrouter",
			"api error: "+strings.TrimSpace(completion.Error.Message), nil)
	}
	return completion, body, nil
}

func extractCompletionContent(completion chatCompletionResponse) (string, string) {
	var finishReason string
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if content := firstNonEmpty(choice.Message.Content, choice.Delta.Content, choice.Text); content != "" {
			return content, finishReason
		}
	}
	return "", finishReason
}

func extractRefusal(completion chatCompletionResponse) string {
	for _, choice := range completion.Choices {
		if refusal := firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal); refusal != "" {
			return refusal
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}
