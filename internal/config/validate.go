package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable. Credentials are checked
// separately by RequireCredentials so read-only commands work without a key.
func (c *Config) Validate() error {
	if err := c.validateContext(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validatePreprocess(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validatePostprocess(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateContext() error {
	if strings.ContainsAny(c.Context.GlobalFile, `/\`) || c.Context.GlobalFile != filepath.Base(c.Context.GlobalFile) {
		return fmt.Errorf("context.global_file must be a file name, got %q", c.Context.GlobalFile)
	}
	if strings.ContainsAny(c.Context.IndividualSuffix, `/\`) {
		return fmt.Errorf("context.individual_suffix must not contain path separators, got %q", c.Context.IndividualSuffix)
	}
	return nil
}

func (c *Config) validateTracking() error {
	switch c.Tracking.Backend {
	case TrackingSQLite, TrackingText:
		return nil
	default:
		return fmt.Errorf("tracking.backend must be %q or %q, got %q", TrackingSQLite, TrackingText, c.Tracking.Backend)
	}
}

func (c *Config) validatePreprocess() error {
	p := c.Preprocess
	if p.MaxDimension < 0 {
		return errors.New("preprocess.max_dimension must be zero (no limit) or positive")
	}
	if p.JPEGQuality < 1 || p.JPEGQuality > 100 {
		return errors.New("preprocess.jpeg_quality must be between 1 and 100")
	}
	switch p.Mode {
	case ModeSimple:
	case ModeThreshold:
		if p.ThresholdBlockSize < 3 || p.ThresholdBlockSize%2 == 0 {
			return errors.New("preprocess.threshold_block_size must be an odd number >= 3")
		}
	default:
		return fmt.Errorf("preprocess.mode must be %q or %q, got %q", ModeSimple, ModeThreshold, p.Mode)
	}
	return nil
}

func (c *Config) validateTranscription() error {
	t := c.Transcription
	switch t.Provider {
	case ProviderGemini, ProviderTesseract:
	case ProviderOpenRouter:
		if t.BaseURL == "" {
			return errors.New("transcription.base_url must be set for provider openrouter")
		}
	default:
		return fmt.Errorf("transcription.provider must be one of %s, %s, %s; got %q", ProviderGemini, ProviderOpenRouter, ProviderTesseract, t.Provider)
	}
	if t.MaxRetries < 1 {
		return errors.New("transcription.max_retries must be at least 1")
	}
	if t.RetryDelaySeconds < 0 {
		return errors.New("transcription.retry_delay_seconds must be zero or positive")
	}
	if t.BackoffMultiplier < 1 {
		return errors.New("transcription.backoff_multiplier must be >= 1")
	}
	if t.Prompt != "" && strings.TrimSpace(t.Prompt) == "" {
		return errors.New("transcription.prompt must not be blank")
	}
	return nil
}

func (c *Config) validatePostprocess() error {
	p := c.Postprocess
	if p.ReviewThreshold < 0 || p.ReviewThreshold > 1 {
		return errors.New("postprocess.review_threshold must be between 0 and 1")
	}
	if p.RemovalThreshold < 0 || p.RemovalThreshold > 1 {
		return errors.New("postprocess.removal_threshold must be between 0 and 1")
	}
	if p.RemovalThreshold < p.ReviewThreshold {
		return errors.New("postprocess.removal_threshold must be >= postprocess.review_threshold")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
