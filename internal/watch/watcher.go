package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"scrivener/internal/fileutil"
	"scrivener/internal/imageref"
	"scrivener/internal/logging"
)

// Seeder records newly arrived images as pending preprocessing.
type Seeder interface {
	Seed(ctx context.Context, dir string, refs []imageref.Reference) error
}

// RunFunc executes one pipeline pass over the tracked images. A returned
// error stops the watcher.
type RunFunc func(ctx context.Context) error

// Watcher monitors a single directory (non-recursive).
type Watcher struct {
	dir      string
	seeder   Seeder
	run      RunFunc
	debounce time.Duration
	logger   *slog.Logger
}

// New returns a watcher for dir. A non-positive debounce flushes every event
// immediately.
func New(dir string, seeder Seeder, run RunFunc, debounce time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		dir:      dir,
		seeder:   seeder,
		run:      run,
		debounce: debounce,
		logger:   logging.NewComponentLogger(logger, "watch"),
	}
}

// Run registers the directory watch, performs an initial pipeline pass and
// then handles events until ctx is canceled. Cancellation returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching input directory",
		logging.String("dir", w.dir),
		logging.Duration("debounce", w.debounce),
		logging.String("extensions", strings.Join(imageref.Extensions(), ",")),
	)

	// Events arriving during the initial pass are buffered by fsnotify.
	if err := w.run(ctx); err != nil {
		return stopErr(ctx, err)
	}

	pending := make(map[string]struct{})
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped", logging.Int("unflushed", len(pending)))
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("image event", logging.String("path", event.Name), logging.String("op", event.Op.String()))
			pending[event.Name] = struct{}{}
			timer.Reset(max(w.debounce, 0))

		case err, ok := <-fw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			logging.WarnWithContext(w.logger, "filesystem watcher error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "events may have been missed; rerun scrivener run to rescan"),
			)

		case <-timer.C:
			batch := drain(pending)
			if err := w.flush(ctx, batch); err != nil {
				return stopErr(ctx, err)
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	return !strings.HasPrefix(name, ".") && imageref.Supported(name)
}

// flush seeds the images in batch that still exist and runs the pipeline.
func (w *Watcher) flush(ctx context.Context, batch []string) error {
	refs := make([]imageref.Reference, 0, len(batch))
	for _, path := range batch {
		// Rename events are reported for the old name as well.
		exists, err := fileutil.RegularFileExists(path)
		if err != nil || !exists {
			continue
		}
		ref, err := imageref.New(path)
		if err != nil {
			continue
		}
		refs = append(refs, ref)
	}
	if len(refs) == 0 {
		return nil
	}
	if err := w.seeder.Seed(ctx, w.dir, refs); err != nil {
		return fmt.Errorf("seed new images: %w", err)
	}
	w.logger.Info("new images queued", logging.Int("image_count", len(refs)))
	return w.run(ctx)
}

func drain(pending map[string]struct{}) []string {
	batch := make([]string, 0, len(pending))
	for path := range pending {
		batch = append(batch, path)
		delete(pending, path)
	}
	sort.Strings(batch)
	return batch
}

func stopErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return nil
	}
	return err
}
