package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestTeeHandlerCollapses(t *testing.T) {
	if _, ok := TeeHandler(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler when every handler is nil")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := TeeHandler(nil, inner); h != inner {
		t.Fatal("expected single handler to be returned unwrapped")
	}
}

func TestTeeHandlerKeepsPerHandlerLevels(t *testing.T) {
	var console, file bytes.Buffer
	quiet := slog.NewJSONHandler(&console, &slog.HandlerOptions{Level: slog.LevelError})
	verbose := slog.NewJSONHandler(&file, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(TeeHandler(quiet, verbose))
	logger.Info("transcript written", FieldImage, "page1.jpeg")
	logger.Error("stage aborted")

	if strings.Contains(console.String(), "transcript written") {
		t.Fatalf("quiet handler received info record: %s", console.String())
	}
	if !strings.Contains(file.String(), "transcript written") || !strings.Contains(file.String(), "stage aborted") {
		t.Fatalf("verbose handler missing records: %s", file.String())
	}
	if !TeeHandler(quiet, verbose).Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("tee should be enabled when any child is")
	}
}

func TestTeeHandlerPropagatesAttrsAndGroups(t *testing.T) {
	var a, b bytes.Buffer
	h := TeeHandler(slog.NewJSONHandler(&a, nil), slog.NewJSONHandler(&b, nil))

	slog.New(h).With(FieldRunID, "r1").WithGroup("transcribe").Info("stage completed", "succeeded", 4)

	for _, out := range []string{a.String(), b.String()} {
		if !strings.Contains(out, `"run_id":"r1"`) {
			t.Fatalf("missing attr in %s", out)
		}
		if !strings.Contains(out, `"transcribe":{"succeeded":4}`) {
			t.Fatalf("missing group in %s", out)
		}
	}
}
