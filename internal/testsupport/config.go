package testsupport

import (
	"path/filepath"
	"testing"

	"scrivener/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Retry delays are zeroed so tests never sleep.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.OutputDir = filepath.Join(base, "output")
	cfgVal.Paths.TranscriptDir = filepath.Join(base, "output")
	cfgVal.Paths.ContextDir = filepath.Join(base, "context")
	cfgVal.Paths.LogDir = ""
	cfgVal.Transcription.APIKey = "test"
	cfgVal.Transcription.Model = "gemini-2.0-flash"
	cfgVal.Transcription.RetryDelaySeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithTrackingBackend selects the tracking backend ("sqlite" or "text").
func WithTrackingBackend(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tracking.Backend = name
	}
}

// WithProvider switches the transcription provider and its base URL.
func WithProvider(provider, baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Transcription.Provider = provider
		b.cfg.Transcription.BaseURL = baseURL
	}
}

// WithWorkers sets the pipeline worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Pipeline.Workers = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
