package config

const (
	defaultConfigPath          = "~/.config/scrivener/config.toml"
	defaultStateDir            = "~/.local/share/scrivener/state"
	defaultOutputDir           = "~/.local/share/scrivener/output"
	defaultContextDir          = "~/.local/share/scrivener/context"
	defaultLogDir              = "~/.local/share/scrivener/logs"
	defaultGlobalContextFile   = "ALL_DOCUMENT_CONTEXT.txt"
	defaultIndividualSuffix    = "_context.txt"
	defaultMaxDimension        = 3072
	defaultJPEGQuality         = 90
	defaultThresholdBlockSize  = 15
	defaultThresholdOffset     = 10
	defaultGeminiModel         = "gemini-2.0-flash"
	defaultOpenRouterModel     = "google/gemini-2.0-flash-001"
	defaultOpenRouterBaseURL   = "https://openrouter.ai/api/v1/chat/completions"
	defaultOpenRouterReferer   = "https://github.com/scrivener-ocr/scrivener"
	defaultOpenRouterTitle     = "Scrivener"
	defaultTesseractLanguage   = "eng"
	defaultTimeoutSeconds      = 120
	defaultMaxRetries          = 3
	defaultRetryDelaySeconds   = 5
	defaultBackoffMultiplier   = 3.0
	defaultMaxRetryDelay       = 300
	defaultReviewThreshold     = 0.5
	defaultRemovalThreshold    = 0.7
	defaultWatchDebounceMillis = 500
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Provider names accepted by transcription.provider.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderTesseract  = "tesseract"
)

// Tracking backends accepted by tracking.backend.
const (
	TrackingSQLite = "sqlite"
	TrackingText   = "text"
)

// Preprocessing modes accepted by preprocess.mode.
const (
	ModeSimple    = "simple"
	ModeThreshold = "threshold"
)

// DefaultExtraneousPhrases lists the conversational lines models tend to wrap
// transcripts in.
var DefaultExtraneousPhrases = []string{
	"Here is the transcribed text from the image",
	"Let me know if you need any modifications or formatting adjustments",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			OutputDir:  defaultOutputDir,
			ContextDir: defaultContextDir,
			LogDir:     defaultLogDir,
		},
		Context: Context{
			GlobalFile:       defaultGlobalContextFile,
			IndividualSuffix: defaultIndividualSuffix,
		},
		Tracking: Tracking{
			Backend: TrackingSQLite,
		},
		Preprocess: Preprocess{
			MaxDimension:       defaultMaxDimension,
			JPEGQuality:        defaultJPEGQuality,
			Grayscale:          true,
			Mode:               ModeSimple,
			ThresholdBlockSize: defaultThresholdBlockSize,
			ThresholdOffset:    defaultThresholdOffset,
		},
		Transcription: Transcription{
			Provider:             ProviderGemini,
			Referer:              defaultOpenRouterReferer,
			Title:                defaultOpenRouterTitle,
			TesseractLanguage:    defaultTesseractLanguage,
			TimeoutSeconds:       defaultTimeoutSeconds,
			MaxRetries:           defaultMaxRetries,
			RetryDelaySeconds:    defaultRetryDelaySeconds,
			BackoffMultiplier:    defaultBackoffMultiplier,
			MaxRetryDelaySeconds: defaultMaxRetryDelay,
		},
		Postprocess: Postprocess{
			Enabled:          true,
			ReviewThreshold:  defaultReviewThreshold,
			RemovalThreshold: defaultRemovalThreshold,
			Phrases:          append([]string(nil), DefaultExtraneousPhrases...),
		},
		Pipeline: Pipeline{
			Workers: 1,
		},
		Watch: Watch{
			DebounceMillis: defaultWatchDebounceMillis,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
