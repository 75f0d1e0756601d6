package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scrivener/internal/services"
)

func newGeminiTestBackend(t *testing.T, handler http.HandlerFunc) *GeminiBackend {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	backend, err := NewGemini(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		Model:      "gemini-2.0-flash",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	return backend
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func TestGeminiTranscribe(t *testing.T) {
	var path, body string
	backend := newGeminiTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		writeJSON(t, w, http.StatusOK, map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": "Dear Mother,"}, map[string]any{"text": "\nAll is well."}},
				},
				"finishReason": "STOP",
			}},
		})
	})

	text, err := backend.Transcribe(context.Background(), Input{
		Name: "a.jpeg", Image: []byte{0xFF, 0xD8, 0xFF}, MIMEType: "image/jpeg", Prompt: "Transcribe this letter.",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Dear Mother,\nAll is well." {
		t.Fatalf("text = %q", text)
	}
	if !strings.Contains(path, "gemini-2.0-flash:generateContent") {
		t.Fatalf("unexpected request path %q", path)
	}
	if !strings.Contains(body, "inlineData") || !strings.Contains(body, "Transcribe this letter.") {
		t.Fatalf("request body missing image or prompt: %s", body)
	}
}

func TestGeminiPermanentFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload map[string]any
	}{
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			payload: map[string]any{"error": map[string]any{
				"code": 400, "message": "Unable to process input image", "status": "INVALID_ARGUMENT",
			}},
		},
		{
			name:   "safety block",
			status: http.StatusOK,
			payload: map[string]any{"candidates": []any{map[string]any{
				"content":      map[string]any{"role": "model", "parts": []any{}},
				"finishReason": "SAFETY",
			}}},
		},
		{
			name:    "prompt blocked",
			status:  http.StatusOK,
			payload: map[string]any{"promptFeedback": map[string]any{"blockReason": "OTHER"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newGeminiTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(t, w, tt.status, tt.payload)
			})
			_, err := backend.Transcribe(context.Background(), Input{Image: []byte{1}, MIMEType: "image/jpeg", Prompt: "p"})
			if !errors.Is(err, services.ErrPermanent) {
				t.Fatalf("expected permanent failure, got %v", err)
			}
			if services.IsRetriable(err) {
				t.Fatal("permanent failure reported as retriable")
			}
		})
	}
}

func TestGeminiEmptyCandidatesAreTransient(t *testing.T) {
	backend := newGeminiTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"candidates": []any{}})
	})
	_, err := backend.Transcribe(context.Background(), Input{Image: []byte{1}, MIMEType: "image/jpeg", Prompt: "p"})
	if !services.IsRetriable(err) {
		t.Fatalf("expected retriable error, got %v", err)
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	if _, err := NewGemini(context.Background(), GeminiConfig{Model: "gemini-2.0-flash"}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
