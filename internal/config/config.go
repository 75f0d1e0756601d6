package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directories the pipeline reads from and writes to.
type Paths struct {
	StateDir      string `toml:"state_dir" yaml:"state_dir"`
	OutputDir     string `toml:"output_dir" yaml:"output_dir"`
	TranscriptDir string `toml:"transcript_dir" yaml:"transcript_dir"`
	ContextDir    string `toml:"context_dir" yaml:"context_dir"`
	LogDir        string `toml:"log_dir" yaml:"log_dir"`
}

// Context names the context files consulted for every image.
type Context struct {
	GlobalFile       string `toml:"global_file" yaml:"global_file"`
	IndividualSuffix string `toml:"individual_suffix" yaml:"individual_suffix"`
}

// Tracking selects the pending-work store backend.
type Tracking struct {
	Backend string `toml:"backend" yaml:"backend"`
}

// Preprocess contains image normalization settings.
type Preprocess struct {
	MaxDimension       int    `toml:"max_dimension" yaml:"max_dimension"`
	JPEGQuality        int    `toml:"jpeg_quality" yaml:"jpeg_quality"`
	Grayscale          bool   `toml:"grayscale" yaml:"grayscale"`
	Mode               string `toml:"mode" yaml:"mode"`
	ThresholdBlockSize int    `toml:"threshold_block_size" yaml:"threshold_block_size"`
	ThresholdOffset    int    `toml:"threshold_offset" yaml:"threshold_offset"`
}

// Transcription contains remote model and retry settings.
type Transcription struct {
	Provider             string  `toml:"provider" yaml:"provider"`
	Model                string  `toml:"model" yaml:"model"`
	APIKey               string  `toml:"api_key" yaml:"api_key"`
	BaseURL              string  `toml:"base_url" yaml:"base_url"`
	Referer              string  `toml:"referer" yaml:"referer"`
	Title                string  `toml:"title" yaml:"title"`
	Prompt               string  `toml:"prompt" yaml:"prompt"`
	TesseractLanguage    string  `toml:"tesseract_language" yaml:"tesseract_language"`
	TimeoutSeconds       int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries           int     `toml:"max_retries" yaml:"max_retries"`
	RetryDelaySeconds    int     `toml:"retry_delay_seconds" yaml:"retry_delay_seconds"`
	BackoffMultiplier    float64 `toml:"backoff_multiplier" yaml:"backoff_multiplier"`
	MaxRetryDelaySeconds int     `toml:"max_retry_delay_seconds" yaml:"max_retry_delay_seconds"`
}

// Postprocess controls removal of conversational model preamble from transcripts.
type Postprocess struct {
	Enabled          bool     `toml:"enabled" yaml:"enabled"`
	ReviewThreshold  float64  `toml:"review_threshold" yaml:"review_threshold"`
	RemovalThreshold float64  `toml:"removal_threshold" yaml:"removal_threshold"`
	Phrases          []string `toml:"phrases" yaml:"phrases"`
}

// Pipeline contains orchestration settings.
type Pipeline struct {
	Workers      int  `toml:"workers" yaml:"workers"`
	ReverseOrder bool `toml:"reverse_order" yaml:"reverse_order"`
}

// Watch contains settings for the directory watcher.
type Watch struct {
	DebounceMillis int `toml:"debounce_ms" yaml:"debounce_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
}

// Config encapsulates all configuration values for scrivener.
//
// Configuration sections by subsystem:
//   - Paths: state, output, transcript, context and log directories
//   - Context: global and per-image context file naming
//   - Tracking: pending-work store backend (sqlite or text)
//   - Preprocess: image normalization before upload
//   - Transcription: provider, model, credentials and retry policy
//   - Postprocess: extraneous phrase cleanup of model output
//   - Pipeline: worker count and processing order
//   - Watch: directory watcher debounce
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths" yaml:"paths"`
	Context       Context       `toml:"context" yaml:"context"`
	Tracking      Tracking      `toml:"tracking" yaml:"tracking"`
	Preprocess    Preprocess    `toml:"preprocess" yaml:"preprocess"`
	Transcription Transcription `toml:"transcription" yaml:"transcription"`
	Postprocess   Postprocess   `toml:"postprocess" yaml:"postprocess"`
	Pipeline      Pipeline      `toml:"pipeline" yaml:"pipeline"`
	Watch         Watch         `toml:"watch" yaml:"watch"`
	Logging       Logging       `toml:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. Files ending in .yaml or .yml are parsed as YAML,
// everything else as TOML.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := decode(resolvedPath, data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
	}
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scrivener.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the pipeline writes into.
// The context directory is input and is never created.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.OutputDir, c.Paths.TranscriptDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequireCredentials reports a configuration error when the selected provider
// needs an API key and none was configured.
func (c *Config) RequireCredentials() error {
	switch c.Transcription.Provider {
	case ProviderGemini, ProviderOpenRouter:
	default:
		return nil
	}
	if strings.TrimSpace(c.Transcription.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("transcription.api_key is required for provider %q. Set %s or edit %s (create with 'scrivener config init')",
		c.Transcription.Provider, strings.Join(apiKeyEnvVars(c.Transcription.Provider), " or "), defaultPath)
}

// TranscriptionTimeout returns the per-attempt request timeout.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutSeconds) * time.Second
}

// RetryDelay returns the base delay between transcription attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Transcription.RetryDelaySeconds) * time.Second
}

// MaxRetryDelay returns the cap applied to computed retry delays.
func (c *Config) MaxRetryDelay() time.Duration {
	return time.Duration(c.Transcription.MaxRetryDelaySeconds) * time.Second
}

// WatchDebounce returns how long the watcher waits for a file to settle.
func (c *Config) WatchDebounce() time.Duration {
	return time.Duration(c.Watch.DebounceMillis) * time.Millisecond
}

// GlobalContextPath returns the absolute path of the global context file.
func (c *Config) GlobalContextPath() string {
	return filepath.Join(c.Paths.ContextDir, c.Context.GlobalFile)
}

// LockPath returns the run lock location inside the state directory.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "scrivener.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
