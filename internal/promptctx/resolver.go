package promptctx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"scrivener/internal/config"
	"scrivener/internal/imageref"
	"scrivener/internal/logging"
)

// Source labels reported in the resolution status line.
const (
	SourcesNone       = "none"
	SourcesGlobal     = "global"
	SourcesIndividual = "individual"
	SourcesBoth       = "global+individual"
)

// Bundle holds the context segments that apply to one image. Either segment
// may be empty; an empty bundle is valid.
type Bundle struct {
	Global     string
	Individual string
}

// Empty reports whether no context applies.
func (b Bundle) Empty() bool {
	return b.Global == "" && b.Individual == ""
}

// Sources names which segments are present.
func (b Bundle) Sources() string {
	switch {
	case b.Global != "" && b.Individual != "":
		return SourcesBoth
	case b.Global != "":
		return SourcesGlobal
	case b.Individual != "":
		return SourcesIndividual
	default:
		return SourcesNone
	}
}

// Fragment joins the segments, global first, separated by a newline.
func (b Bundle) Fragment() string {
	parts := make([]string, 0, 2)
	if b.Global != "" {
		parts = append(parts, b.Global)
	}
	if b.Individual != "" {
		parts = append(parts, b.Individual)
	}
	return strings.Join(parts, "\n")
}

// Resolver reads global and per-image context files from one directory.
// Files are read on every call so edits made during a run take effect for
// the images that follow.
type Resolver struct {
	dir        string
	globalFile string
	suffix     string
	logger     *slog.Logger
}

// NewResolver builds a Resolver from the context section of cfg.
func NewResolver(cfg *config.Config, logger *slog.Logger) *Resolver {
	return &Resolver{
		dir:        cfg.Paths.ContextDir,
		globalFile: cfg.Context.GlobalFile,
		suffix:     cfg.Context.IndividualSuffix,
		logger:     logging.NewComponentLogger(logger, "context"),
	}
}

// GlobalPath returns the location of the global context file.
func (r *Resolver) GlobalPath() string {
	return filepath.Join(r.dir, r.globalFile)
}

// IndividualPath returns the context file consulted for ref.
func (r *Resolver) IndividualPath(ref imageref.Reference) string {
	return filepath.Join(r.dir, ref.Stem+r.suffix)
}

// Resolve never fails: missing files contribute nothing and unreadable files
// are logged as warnings and treated as missing.
func (r *Resolver) Resolve(ctx context.Context, ref imageref.Reference) Bundle {
	logger := logging.WithContext(ctx, r.logger)
	bundle := Bundle{
		Global:     r.readSegment(logger, r.GlobalPath()),
		Individual: r.readSegment(logger, r.IndividualPath(ref)),
	}
	// Outputs named page.png.jpeg fall back to page_context.txt.
	if bundle.Individual == "" && imageref.Supported(ref.Stem) {
		stem := strings.TrimSuffix(ref.Stem, filepath.Ext(ref.Stem))
		bundle.Individual = r.readSegment(logger, filepath.Join(r.dir, stem+r.suffix))
	}
	logger.Info("context resolved",
		logging.String("sources", bundle.Sources()),
		logging.Int("context_chars", len(bundle.Fragment())),
	)
	return bundle
}

func (r *Resolver) readSegment(logger *slog.Logger, path string) string {
	text, err := ReadContextFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ""
		}
		logging.WarnWithContext(logger, "context file unreadable", "context_unreadable",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check file permissions and encoding"),
			logging.String(logging.FieldImpact, "image is transcribed without this context"),
		)
		return ""
	}
	return text
}

// ReadContextFile returns the trimmed text of a context file. UTF-8 and
// UTF-16 byte order marks are honoured; files without one are read as UTF-8.
func ReadContextFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return strings.TrimSpace(string(decoded)), nil
}
