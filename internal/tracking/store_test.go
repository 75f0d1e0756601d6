package tracking_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"scrivener/internal/config"
	"scrivener/internal/imageref"
	"scrivener/internal/testsupport"
	"scrivener/internal/tracking"
)

var backends = []string{config.TrackingSQLite, config.TrackingText}

func forEachBackend(t *testing.T, fn func(t *testing.T, cfg *config.Config, store *tracking.Store)) {
	t.Helper()
	for _, name := range backends {
		t.Run(name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t, testsupport.WithTrackingBackend(name))
			store := testsupport.MustOpenStore(t, cfg)
			fn(t, cfg, store)
		})
	}
}

func writeInputs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		testsupport.WriteText(t, filepath.Join(dir, name), "x")
	}
}

func bases(refs []imageref.Reference) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		out[i] = ref.Base
	}
	return out
}

func TestDiscoverPopulatesPreprocessList(t *testing.T) {
	forEachBackend(t, func(t *testing.T, cfg *config.Config, store *tracking.Store) {
		ctx := context.Background()
		input := filepath.Join(testsupport.BaseDir(cfg), "input")
		writeInputs(t, input, "b.png", "a.tif", "notes.txt")

		started, err := store.Started(ctx)
		if err != nil || started {
			t.Fatalf("Started = %v, %v; want false", started, err)
		}

		refs, err := store.Discover(ctx, input, false)
		if err != nil {
			t.Fatalf("Discover: %v", err)
		}
		if got, want := bases(refs), []string{"a.tif", "b.png"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("discovered %v, want %v", got, want)
		}
		if started, _ := store.Started(ctx); !started {
			t.Fatal("expected tracking state after discovery")
		}
		counts, err := store.Counts(ctx)
		if err != nil {
			t.Fatalf("Counts: %v", err)
		}
		if counts != (tracking.Counts{Preprocess: 2}) {
			t.Fatalf("unexpected counts %+v", counts)
		}
	})
}

func TestDiscoverWithoutResetReusesState(t *testing.T) {
	forEachBackend(t, func(t *testing.T, cfg *config.Config, store *tracking.Store) {
		ctx := context.Background()
		input := filepath.Join(testsupport.BaseDir(cfg), "input")
		writeInputs(t, input, "a.png", "b.png")

		refs, err := store.Discover(ctx, input, false)
		if err != nil {
			t.Fatalf("Discover: %v", err)
		}
		processed := filepath.Join(cfg.Paths.OutputDir, "a.jpeg")
		if err := store.Transfer(ctx, tracking.ListPreprocess, refs[0].Path, tracking.ListTranscribe, processed); err != nil {
			t.Fatalf("Transfer: %v", err)
		}
		writeInputs(t, input, "c.png")

		again, err := store.Discover(ctx, input, false)
		if err != nil {
			t.Fatalf("second Discover: %v", err)
		}
		if got, want := bases(again), []string{"b.png"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("resumed preprocess list %v, want %v", got, want)
		}
		pending, err := store.ReadAll(ctx, tracking.ListTranscribe)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if len(pending) != 1 || pending[0].Path != processed {
			t.Fatalf("transcribe list should be untouched, got %v", pending)
		}
	})
}

func TestDiscoverResetRebuildsBothLists(t *testing.T) {
	forEachBackend(t, func(t *testing.T, cfg *config.Config, store *tracking.Store) {
		ctx := context.Background()
		input := filepath.Join(testsupport.BaseDir(cfg), "input")
		writeInputs(t, input, "a.png")

		if _, err := store.Discover(ctx, input, false); err != nil {
			t.Fatalf("Discover: %v", err)
		}
		if err := store.MarkPending(ctx, tracking.ListTranscribe, filepath.Join(cfg.Paths.OutputDir, "old.jpeg")); err != nil {
			t.Fatalf("MarkPending: %v", err)
		}
		writeInputs(t, input, "b.png")

		refs, err := store.Discover(ctx, input, true)
		if err != nil {
			t.Fatalf("reset Discover: %v", err)
		}
		if got, want := bases(refs), []string{"a.png", "b.png"}; !reflect.DeepEqual(got, want) {
			t.Fatalf("reset discovered %v, want %v", got, want)
		}
		counts, _ := store.Counts(ctx)
		if counts.Transcribe != 0 {
			t.Fatalf("reset should truncate transcribe list, got %+v", counts)
		}
	})
}

func TestDiscoverMissingDirectoryLeavesNoState(t *testing.T) {
	forEachBackend(t, func(t *testing.T, cfg *config.Config, store *tracking.Store) {
		ctx := context.Background()
		if _, err := store.Discover(ctx, filepath.Join(testsupport.BaseDir(cfg), "absent"), true); err == nil {
			t.Fatal("expected error for missing input directory")
		}
		if started, _ := store.Started(ctx); started {
			t.Fatal("failed discovery must not create tracking state")
		}
		assertNoFiles(t, store)
	})
}

func TestMarkPendingDeduplicates(t *testing.T) {
	forEachBackend(t, func(t *testing.T, cfg *config.Config, store *tracking.Store) {
		ctx := context.Background()
		path := filepath.Join(cfg.Paths.OutputDir, "page.jpeg")
		for i := 0; i < 3; i++ {
			if err := store.MarkPending(ctx, tracking.ListTranscribe, path); err != nil {
				t.Fatalf("MarkPending: %v", err)
			}
		}
		refs, err := store.ReadAll(ctx, tracking.ListTranscribe)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if len(refs) != 1 {
			t.Fatalf("expected a single entry, got %d", len(refs))
		}

		if err := store.MarkDone(ctx, tracking.ListTranscribe, path); err != nil {
			t.Fatalf("MarkDone: %v", err)
		}
		if err := store.MarkDone(ctx, tracking.ListTranscribe, path); err != nil {
			t.Fatalf("MarkDone on absent entry should be a no-op: %v", err)
		}
	})
}

func TestReadAllPreservesInsertionOrder(t *testing.T) {
	forEachBackend(t, func(t *testing.T, cfg *config.Config, store *tracking.Store) {
		ctx := context.Background()
		names := []string{"z.jpeg", "a.jpeg", "m.jpeg"}
		for _, name := range names {
			if err := store.MarkPending(ctx, tracking.ListTranscribe, filepath.Join(cfg.Paths.OutputDir, name)); err != nil {
				t.Fatalf("MarkPending: %v", err)
			}
		}
		refs, err := store.ReadAll(ctx, tracking.ListTranscribe)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if got := bases(refs); !reflect.DeepEqual(got, names) {
			t.Fatalf("order %v, want %v", got, names)
		}
	})
}

func TestClearRemovesFilesAndStoreStaysUsable(t *testing.T) {
	forEachBackend(t, func(t *testing.T, cfg *config.Config, store *tracking.Store) {
		ctx := context.Background()
		input := filepath.Join(testsupport.BaseDir(cfg), "input")
		writeInputs(t, input, "a.png")
		if _, err := store.Discover(ctx, input, false); err != nil {
			t.Fatalf("Discover: %v", err)
		}
		if err := store.MarkPending(ctx, tracking.ListTranscribe, filepath.Join(cfg.Paths.OutputDir, "a.jpeg")); err != nil {
			t.Fatalf("MarkPending: %v", err)
		}

		if err := store.Clear(ctx); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		assertNoFiles(t, store)

		snap, err := store.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot after clear: %v", err)
		}
		if snap.Started || snap.Counts().Total() != 0 {
			t.Fatalf("expected empty snapshot, got %+v", snap)
		}
		assertNoFiles(t, store)

		if _, err := store.Discover(ctx, input, false); err != nil {
			t.Fatalf("Discover after clear: %v", err)
		}
		counts, _ := store.Counts(ctx)
		if counts.Preprocess != 1 {
			t.Fatalf("expected rediscovery after clear, got %+v", counts)
		}
	})
}

func TestSeedEstablishesState(t *testing.T) {
	forEachBackend(t, func(t *testing.T, cfg *config.Config, store *tracking.Store) {
		ctx := context.Background()
		input := filepath.Join(testsupport.BaseDir(cfg), "input")
		writeInputs(t, input, "a.png", "b.png")
		ref := imageref.FromPath(filepath.Join(input, "b.png"))

		if err := store.Seed(ctx, input, []imageref.Reference{ref, ref}); err != nil {
			t.Fatalf("Seed: %v", err)
		}
		snap, err := store.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
		if !snap.Started {
			t.Fatal("expected seed to establish tracking state")
		}
		if snap.State.SourceDir != input {
			t.Fatalf("unexpected source dir %q", snap.State.SourceDir)
		}
		if !reflect.DeepEqual(snap.Preprocess, []string{ref.Path}) {
			t.Fatalf("unexpected preprocess list %v", snap.Preprocess)
		}

		refs, err := store.Discover(ctx, input, false)
		if err != nil {
			t.Fatalf("Discover: %v", err)
		}
		if len(refs) != 1 {
			t.Fatalf("discovery should reuse seeded state, got %v", bases(refs))
		}
	})
}

func TestRejectsInvalidEntries(t *testing.T) {
	forEachBackend(t, func(t *testing.T, cfg *config.Config, store *tracking.Store) {
		ctx := context.Background()
		if err := store.MarkPending(ctx, tracking.List("done"), "/x.png"); !errors.Is(err, tracking.ErrUnknownList) {
			t.Fatalf("expected ErrUnknownList, got %v", err)
		}
		if err := store.MarkPending(ctx, tracking.ListPreprocess, "/bad\nname.png"); err == nil {
			t.Fatal("expected error for path with newline")
		}
	})
}

func TestTextBackendFileFormat(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTrackingBackend(config.TrackingText))
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	input := filepath.Join(testsupport.BaseDir(cfg), "input")
	writeInputs(t, input, "a.png", "b.png")

	if _, err := store.Discover(ctx, input, true); err != nil {
		t.Fatalf("Discover: %v", err)
	}
	content := testsupport.ReadText(t, filepath.Join(cfg.Paths.StateDir, "pending_preprocess.txt"))
	var paths []string
	for _, line := range strings.Split(strings.TrimSuffix(content, "\n"), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	want := []string{filepath.Join(input, "a.png"), filepath.Join(input, "b.png")}
	if !reflect.DeepEqual(paths, want) {
		t.Fatalf("file paths %v, want %v", paths, want)
	}
	if !strings.HasSuffix(content, "\n") {
		t.Fatal("expected newline-terminated file")
	}

	// Hand-edited files with blank lines and duplicates still read cleanly.
	testsupport.WriteText(t, filepath.Join(cfg.Paths.StateDir, "pending_transcription.txt"), "/out/a.jpeg\n\n/out/a.jpeg\n/out/b.jpeg\n")
	refs, err := store.ReadAll(ctx, tracking.ListTranscribe)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if got := bases(refs); !reflect.DeepEqual(got, []string{"a.jpeg", "b.jpeg"}) {
		t.Fatalf("unexpected entries %v", got)
	}
}

func TestSQLiteReadsDoNotCreateDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if _, err := store.Counts(context.Background()); err != nil {
		t.Fatalf("Counts: %v", err)
	}
	assertNoFiles(t, store)
}

func TestAcquireLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrivener.lock")
	first, err := tracking.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if _, err := tracking.AcquireLock(path); !errors.Is(err, tracking.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	second, err := tracking.AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock after release: %v", err)
	}
	_ = second.Release()
}

func assertNoFiles(t *testing.T, store *tracking.Store) {
	t.Helper()
	for _, file := range store.Files() {
		if _, err := os.Stat(file); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be absent, stat err = %v", file, err)
		}
	}
}
