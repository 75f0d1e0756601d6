package config

import (
	"fmt"
	"os"
	"strings"

	"scrivener/internal/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeContext()
	c.normalizeTracking()
	c.normalizePreprocess()
	c.normalizeTranscription()
	c.normalizePostprocess()
	c.normalizeLogging()
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 1
	}
	if c.Watch.DebounceMillis <= 0 {
		c.Watch.DebounceMillis = defaultWatchDebounceMillis
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TranscriptDir) == "" {
		c.Paths.TranscriptDir = c.Paths.OutputDir
	}
	if c.Paths.TranscriptDir, err = expandPath(c.Paths.TranscriptDir); err != nil {
		return fmt.Errorf("paths.transcript_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ContextDir) == "" {
		c.Paths.ContextDir = defaultContextDir
	}
	if c.Paths.ContextDir, err = expandPath(c.Paths.ContextDir); err != nil {
		return fmt.Errorf("paths.context_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeContext() {
	c.Context.GlobalFile = strings.TrimSpace(c.Context.GlobalFile)
	if c.Context.GlobalFile == "" {
		c.Context.GlobalFile = defaultGlobalContextFile
	}
	c.Context.IndividualSuffix = strings.TrimSpace(c.Context.IndividualSuffix)
	if c.Context.IndividualSuffix == "" {
		c.Context.IndividualSuffix = defaultIndividualSuffix
	}
}

func (c *Config) normalizeTracking() {
	c.Tracking.Backend = strings.ToLower(strings.TrimSpace(c.Tracking.Backend))
	if c.Tracking.Backend == "" {
		c.Tracking.Backend = TrackingSQLite
	}
}

func (c *Config) normalizePreprocess() {
	c.Preprocess.Mode = strings.ToLower(strings.TrimSpace(c.Preprocess.Mode))
	if c.Preprocess.Mode == "" {
		c.Preprocess.Mode = ModeSimple
	}
	if c.Preprocess.JPEGQuality == 0 {
		c.Preprocess.JPEGQuality = defaultJPEGQuality
	}
	if c.Preprocess.ThresholdBlockSize == 0 {
		c.Preprocess.ThresholdBlockSize = defaultThresholdBlockSize
	}
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
	if t.Provider == "" {
		t.Provider = ProviderGemini
	}
	t.APIKey = strings.TrimSpace(t.APIKey)
	for _, name := range apiKeyEnvVars(t.Provider) {
		if value, ok := os.LookupEnv(name); ok && strings.TrimSpace(value) != "" {
			t.APIKey = strings.TrimSpace(value)
			break
		}
	}
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		switch t.Provider {
		case ProviderGemini:
			t.Model = defaultGeminiModel
		case ProviderOpenRouter:
			t.Model = defaultOpenRouterModel
		}
	}
	t.BaseURL = strings.TrimSpace(t.BaseURL)
	if t.BaseURL == "" && t.Provider == ProviderOpenRouter {
		t.BaseURL = defaultOpenRouterBaseURL
	}
	t.TesseractLanguage = language.ToTesseract(t.TesseractLanguage)
	if t.TimeoutSeconds <= 0 {
		t.TimeoutSeconds = defaultTimeoutSeconds
	}
	if t.BackoffMultiplier == 0 {
		t.BackoffMultiplier = defaultBackoffMultiplier
	}
	if t.MaxRetryDelaySeconds <= 0 {
		t.MaxRetryDelaySeconds = defaultMaxRetryDelay
	}
}

func (c *Config) normalizePostprocess() {
	phrases := make([]string, 0, len(c.Postprocess.Phrases))
	for _, phrase := range c.Postprocess.Phrases {
		if trimmed := strings.TrimSpace(phrase); trimmed != "" {
			phrases = append(phrases, trimmed)
		}
	}
	if len(phrases) == 0 {
		phrases = append(phrases, DefaultExtraneousPhrases...)
	}
	c.Postprocess.Phrases = phrases
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func apiKeyEnvVars(provider string) []string {
	switch provider {
	case ProviderGemini:
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case ProviderOpenRouter:
		return []string{"OPENROUTER_API_KEY"}
	default:
		return nil
	}
}
