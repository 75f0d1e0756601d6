package preflight

import (
	"context"
	"strings"

	"scrivener/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// HealthChecker is satisfied by transcription clients and backends.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RunAll executes the applicable checks for cfg. The backend check is skipped
// when checker is nil (for example when credentials are missing).
func RunAll(ctx context.Context, cfg *config.Config, checker HealthChecker) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
	}
	if cfg.Paths.TranscriptDir != "" && cfg.Paths.TranscriptDir != cfg.Paths.OutputDir {
		results = append(results, CheckDirectoryAccess("Transcript directory", cfg.Paths.TranscriptDir))
	}
	results = append(results,
		CheckOptionalDirectory("Context directory", cfg.Paths.ContextDir),
		CheckOptionalFile("Global context", cfg.GlobalContextPath()),
		CheckCredentials(cfg),
	)

	if checker != nil {
		results = append(results, CheckTranscriber(ctx, backendLabel(cfg), checker))
	}
	return results
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func backendLabel(cfg *config.Config) string {
	provider := strings.TrimSpace(cfg.Transcription.Provider)
	if provider == "" {
		return "Transcription backend"
	}
	if provider == config.ProviderTesseract {
		return "Transcription backend (tesseract)"
	}
	return "Transcription backend (" + provider + " " + cfg.Transcription.Model + ")"
}
