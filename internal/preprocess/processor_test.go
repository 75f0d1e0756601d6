package preprocess_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"scrivener/internal/config"
	"scrivener/internal/imageref"
	"scrivener/internal/logging"
	"scrivener/internal/preprocess"
	"scrivener/internal/services"
	"scrivener/internal/testsupport"
)

func decodeOutput(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	return img
}

func TestProcessWritesNormalizedJPEG(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Preprocess.MaxDimension = 100
	src := filepath.Join(testsupport.BaseDir(cfg), "input", "Letter 1.png")
	testsupport.WriteImage(t, src, 400, 200)

	p := preprocess.New(cfg, logging.NewNop())
	out, err := p.Process(context.Background(), imageref.FromPath(src))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if want := filepath.Join(cfg.Paths.OutputDir, "Letter 1.jpeg"); out.Path != want {
		t.Fatalf("output path = %q, want %q", out.Path, want)
	}
	if out.Stem != "Letter 1" {
		t.Fatalf("output stem = %q", out.Stem)
	}

	img := decodeOutput(t, out.Path)
	if got := img.Bounds().Size(); got != (image.Point{X: 100, Y: 50}) {
		t.Fatalf("output size = %v, want 100x50", got)
	}
	if _, ok := img.(*image.Gray); !ok {
		t.Fatalf("expected grayscale output, got %T", img)
	}
}

func TestProcessDoesNotUpscale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "input", "small.png")
	testsupport.WriteImage(t, src, 64, 48)

	out, err := preprocess.New(cfg, logging.NewNop()).Process(context.Background(), imageref.FromPath(src))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := decodeOutput(t, out.Path).Bounds().Size(); got != (image.Point{X: 64, Y: 48}) {
		t.Fatalf("output size = %v, want 64x48", got)
	}
}

func TestProcessColorWhenGrayscaleDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Preprocess.Grayscale = false
	src := filepath.Join(testsupport.BaseDir(cfg), "input", "color.png")
	testsupport.WriteImage(t, src, 32, 32)

	out, err := preprocess.New(cfg, logging.NewNop()).Process(context.Background(), imageref.FromPath(src))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, ok := decodeOutput(t, out.Path).(*image.Gray); ok {
		t.Fatal("expected colour output when grayscale is disabled")
	}
}

func TestProcessThresholdMode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Preprocess.Mode = config.ModeThreshold
	src := filepath.Join(testsupport.BaseDir(cfg), "input", "faded.png")
	testsupport.WriteImage(t, src, 60, 60)

	out, err := preprocess.New(cfg, logging.NewNop()).Process(context.Background(), imageref.FromPath(src))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if _, ok := decodeOutput(t, out.Path).(*image.Gray); !ok {
		t.Fatal("threshold mode should produce grayscale output")
	}
}

func TestProcessIsDeterministic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "input", "page.png")
	testsupport.WriteImage(t, src, 120, 90)
	p := preprocess.New(cfg, logging.NewNop())

	out, err := p.Process(context.Background(), imageref.FromPath(src))
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	first := testsupport.ReadText(t, out.Path)
	if _, err := p.Process(context.Background(), imageref.FromPath(src)); err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if second := testsupport.ReadText(t, out.Path); !bytes.Equal([]byte(first), []byte(second)) {
		t.Fatal("re-processing produced different output")
	}
}

func TestProcessErrors(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	input := filepath.Join(testsupport.BaseDir(cfg), "input")
	corrupt := filepath.Join(input, "corrupt.tif")
	testsupport.WriteCorruptImage(t, corrupt)

	tests := []struct {
		name   string
		path   string
		marker error
	}{
		{"corrupt", corrupt, services.ErrValidation},
		{"missing", filepath.Join(input, "gone.png"), services.ErrNotFound},
	}
	p := preprocess.New(cfg, logging.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref := imageref.FromPath(tt.path)
			_, err := p.Process(context.Background(), ref)
			if !errors.Is(err, tt.marker) {
				t.Fatalf("error = %v, want %v", err, tt.marker)
			}
			if services.IsRetriable(err) {
				t.Fatalf("%s input should not be retriable", tt.name)
			}
			if _, statErr := os.Stat(p.OutputPath(ref)); !os.IsNotExist(statErr) {
				t.Fatalf("no output expected for %s input, stat err %v", tt.name, statErr)
			}
		})
	}
}

func TestProcessHonoursCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	src := filepath.Join(testsupport.BaseDir(cfg), "input", "page.png")
	testsupport.WriteImage(t, src, 10, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := preprocess.New(cfg, logging.NewNop()).Process(ctx, imageref.FromPath(src)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestOutputPathSeparatesSharedStems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	input := filepath.Join(testsupport.BaseDir(cfg), "input")
	for _, name := range []string{"page.png", "page.jpg", "cover.tif"} {
		testsupport.WriteImage(t, filepath.Join(input, name), 20, 20)
	}
	p := preprocess.New(cfg, logging.NewNop())

	tests := map[string]string{
		"page.png":  "page.png.jpeg",
		"page.jpg":  "page.jpg.jpeg",
		"cover.tif": "cover.jpeg",
	}
	for name, want := range tests {
		got := p.OutputPath(imageref.FromPath(filepath.Join(input, name)))
		if got != filepath.Join(cfg.Paths.OutputDir, want) {
			t.Fatalf("OutputPath(%s) = %q, want %s", name, got, want)
		}
	}
}
