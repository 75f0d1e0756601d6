package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"scrivener/internal/config"
	"scrivener/internal/pipeline"
	"scrivener/internal/postprocess"
	"scrivener/internal/preflight"
	"scrivener/internal/preprocess"
	"scrivener/internal/promptctx"
	"scrivener/internal/tracking"
	"scrivener/internal/transcription"
)

// app holds the collaborators for one pipeline-driving command.
type app struct {
	cfg          *config.Config
	lock         *tracking.Lock
	store        *tracking.Store
	client       *transcription.Client
	orchestrator *pipeline.Orchestrator
}

// openApp checks the working directories, takes the run lock and wires the
// pipeline for inputDir. Callers must Close the app.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, inputDir string, opts ...pipeline.Option) (*app, error) {
	if err := checkInputDir(cfg, inputDir); err != nil {
		return nil, err
	}
	for _, check := range []preflight.Result{
		preflight.CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		preflight.CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir),
		preflight.CheckDirectoryAccess("Transcript directory", cfg.Paths.TranscriptDir),
	} {
		if !check.Passed {
			return nil, fmt.Errorf("%s: %s", check.Name, check.Detail)
		}
	}

	client, err := transcription.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	lock, err := tracking.AcquireLock(cfg.LockPath())
	if err != nil {
		if errors.Is(err, tracking.ErrLocked) {
			return nil, fmt.Errorf("%w; wait for it to finish or stop it first", err)
		}
		return nil, err
	}
	store, err := tracking.Open(cfg, logger)
	if err != nil {
		_ = lock.Release()
		return nil, fmt.Errorf("open tracking store: %w", err)
	}

	var cleaner *postprocess.Cleaner
	if cfg.Postprocess.Enabled {
		cleaner = postprocess.New(cfg.Postprocess)
	}
	orch := pipeline.New(cfg, pipeline.Dependencies{
		Store:        store,
		Preprocessor: preprocess.New(cfg, logger),
		Resolver:     promptctx.NewResolver(cfg, logger),
		Transcriber:  client,
		Cleaner:      cleaner,
	}, logger, opts...)

	return &app{cfg: cfg, lock: lock, store: store, client: client, orchestrator: orch}, nil
}

func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.lock.Release())
}

// checkInputDir rejects an input directory the pipeline also writes into.
func checkInputDir(cfg *config.Config, inputDir string) error {
	input := resolveDir(inputDir)
	for _, dir := range []struct{ label, path string }{
		{"output", cfg.Paths.OutputDir},
		{"transcript", cfg.Paths.TranscriptDir},
		{"state", cfg.Paths.StateDir},
	} {
		if dir.path != "" && resolveDir(dir.path) == input {
			return fmt.Errorf("input directory %s is also the %s directory; keep source scans in a separate folder", inputDir, dir.label)
		}
	}
	return nil
}

func resolveDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real
	}
	return abs
}
