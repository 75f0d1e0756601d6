package preprocess

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"scrivener/internal/config"
	"scrivener/internal/fileutil"
	"scrivener/internal/imageref"
	"scrivener/internal/logging"
	"scrivener/internal/services"
)

const stageName = "preprocess"

// OutputExt is the extension of every normalized image.
const OutputExt = ".jpeg"

// Processor normalizes source scans into JPEGs sized for upload.
type Processor struct {
	outputDir string
	settings  config.Preprocess
	logger    *slog.Logger
}

// New builds a Processor writing into cfg.Paths.OutputDir.
func New(cfg *config.Config, logger *slog.Logger) *Processor {
	return &Processor{
		outputDir: cfg.Paths.OutputDir,
		settings:  cfg.Preprocess,
		logger:    logging.NewComponentLogger(logger, stageName),
	}
}

// OutputPath returns where the normalized copy of ref is written:
// <stem>.jpeg, or <basename>.jpeg when another source shares the stem so
// page.png and page.jpg keep separate outputs and transcripts.
func (p *Processor) OutputPath(ref imageref.Reference) string {
	name := ref.Stem
	if imageref.SharesStem(ref) {
		name = ref.Base
	}
	return filepath.Join(p.outputDir, name+OutputExt)
}

// Process decodes ref, normalizes it and writes it to OutputPath, replacing
// any previous output. Undecodable input is reported as a
// validation error and produces no file.
func (p *Processor) Process(ctx context.Context, ref imageref.Reference) (imageref.Reference, error) {
	if err := ctx.Err(); err != nil {
		return imageref.Reference{}, err
	}
	start := time.Now()

	src, format, err := decodeFile(ref.Path)
	if err != nil {
		return imageref.Reference{}, err
	}
	bounds := src.Bounds()
	img := p.normalize(src)

	out := imageref.FromPath(p.OutputPath(ref))
	err = fileutil.WriteAtomicFunc(out.Path, 0o644, func(w io.Writer) error {
		return jpeg.Encode(w, img, &jpeg.Options{Quality: p.settings.JPEGQuality})
	})
	if err != nil {
		return imageref.Reference{}, services.Wrap(services.ErrTransient, stageName, "write", out.Base, err)
	}

	logging.WithContext(ctx, p.logger).Debug("image normalized",
		logging.String("source_format", format),
		logging.String("source_size", fmt.Sprintf("%dx%d", bounds.Dx(), bounds.Dy())),
		logging.String("output_size", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy())),
		logging.String("mode", p.settings.Mode),
		logging.String("output", out.Path),
		logging.Duration("elapsed", time.Since(start)),
	)
	return out, nil
}

func decodeFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", services.Wrap(services.ErrNotFound, stageName, "open", filepath.Base(path), err)
		}
		return nil, "", services.Wrap(services.ErrPermanent, stageName, "open", filepath.Base(path), err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, "", services.Wrap(services.ErrValidation, stageName, "decode", filepath.Base(path), err)
	}
	if b := img.Bounds(); b.Dx() == 0 || b.Dy() == 0 {
		return nil, "", services.Wrap(services.ErrValidation, stageName, "decode", filepath.Base(path)+" has no pixels", nil)
	}
	return img, format, nil
}

func (p *Processor) normalize(src image.Image) image.Image {
	img := flatten(src)
	threshold := p.settings.Mode == config.ModeThreshold
	gray := p.settings.Grayscale || threshold
	if gray {
		img = toGray(img)
	}
	img = scaleToFit(img, p.settings.MaxDimension, gray)
	if threshold {
		g := toGray(img)
		img = adaptiveThreshold(medianBlur3(g), p.settings.ThresholdBlockSize, p.settings.ThresholdOffset)
	}
	return img
}
