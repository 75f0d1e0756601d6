package transcription

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"scrivener/internal/services"
)

// Input is the payload of one backend call.
type Input struct {
	// Name is the image basename, used only for diagnostics.
	Name     string
	Image    []byte
	MIMEType string
	Prompt   string
}

// Backend performs a single transcription attempt. Implementations classify
// failures with the services markers so the client can decide on retries.
type Backend interface {
	Name() string
	Transcribe(ctx context.Context, in Input) (string, error)
	HealthCheck(ctx context.Context) error
}

// StatusError is an HTTP failure returned by a remote provider. It unwraps to
// services.ErrTransient for 408, 429 and 5xx responses and to
// services.ErrPermanent otherwise.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return fmt.Sprintf("%s request: http %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s request: http %d: %s", e.Provider, e.StatusCode, summarizePayloadSnippet(msg))
}

func (e *StatusError) Unwrap() error {
	if retriableStatus(e.StatusCode) {
		return services.ErrTransient
	}
	return services.ErrPermanent
}

func retriableStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}

// MIMEType maps an image path to the content type sent to providers.
func MIMEType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
