package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"scrivener/internal/config"
	"scrivener/internal/imageref"
	"scrivener/internal/logging"
)

// List names one of the pending-work lists.
type List string

const (
	// ListPreprocess holds source images awaiting preprocessing.
	ListPreprocess List = "preprocess"
	// ListTranscribe holds processed images awaiting transcription.
	ListTranscribe List = "transcribe"
)

// Lists returns every list in pipeline order.
func Lists() []List {
	return []List{ListPreprocess, ListTranscribe}
}

func (l List) valid() bool {
	return l == ListPreprocess || l == ListTranscribe
}

// ErrUnknownList is returned when a caller names a list that does not exist.
var ErrUnknownList = errors.New("unknown tracking list")

// Counts reports how many entries each list holds.
type Counts struct {
	Preprocess int `json:"preprocess" yaml:"preprocess"`
	Transcribe int `json:"transcribe" yaml:"transcribe"`
}

// Total returns the number of pending entries across both lists.
func (c Counts) Total() int {
	return c.Preprocess + c.Transcribe
}

// RunState describes the discovery that created the current tracking state.
type RunState struct {
	SourceDir    string
	DiscoveredAt time.Time
}

// Snapshot is a point-in-time view of the tracking state for status output.
type Snapshot struct {
	Backend    string
	Started    bool
	State      RunState
	Preprocess []string
	Transcribe []string
}

// Counts summarizes the snapshot.
func (s Snapshot) Counts() Counts {
	return Counts{Preprocess: len(s.Preprocess), Transcribe: len(s.Transcribe)}
}

// backend is the persistence contract both storage formats implement. Every
// mutation must be crash-atomic and must deduplicate on write.
type backend interface {
	name() string
	state(ctx context.Context) (RunState, bool, error)
	reset(ctx context.Context, state RunState, paths []string) error
	ensureState(ctx context.Context, state RunState) error
	add(ctx context.Context, list List, path string) error
	remove(ctx context.Context, list List, path string) error
	transfer(ctx context.Context, from List, fromPath string, to List, toPath string) error
	read(ctx context.Context, list List) ([]string, error)
	clear(ctx context.Context) error
	files() []string
	close() error
}

// Store owns the pending-work lists that make pipeline runs resumable.
// Mutations are serialized by the backend.
type Store struct {
	backend backend
	logger  *slog.Logger
	now     func() time.Time
}

// Open selects the configured backend inside cfg.Paths.StateDir.
func Open(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("tracking: config is required")
	}
	var (
		b   backend
		err error
	)
	switch cfg.Tracking.Backend {
	case config.TrackingText:
		b, err = newTextBackend(cfg.Paths.StateDir)
	case config.TrackingSQLite, "":
		b, err = newSQLiteBackend(filepath.Join(cfg.Paths.StateDir, sqliteFileName))
	default:
		err = fmt.Errorf("tracking: unsupported backend %q", cfg.Tracking.Backend)
	}
	if err != nil {
		return nil, err
	}
	return &Store{
		backend: b,
		logger:  logging.NewComponentLogger(logger, "tracking"),
		now:     time.Now,
	}, nil
}

// Backend returns the storage format name.
func (s *Store) Backend() string {
	return s.backend.name()
}

// Files returns every on-disk path the backend may create.
func (s *Store) Files() []string {
	return s.backend.files()
}

// Started reports whether tracking state from a previous discovery exists.
func (s *Store) Started(ctx context.Context) (bool, error) {
	_, ok, err := s.backend.state(ctx)
	return ok, err
}

// Discover populates the preprocess list from dir. With reset, both lists are
// truncated and rebuilt from a fresh scan. Without reset, existing tracking
// state is reused unchanged and the directory is only scanned when no state
// exists yet. The returned references are the pending preprocess entries.
func (s *Store) Discover(ctx context.Context, dir string, reset bool) ([]imageref.Reference, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve input directory: %w", err)
	}

	if !reset {
		state, ok, err := s.backend.state(ctx)
		if err != nil {
			return nil, fmt.Errorf("read tracking state: %w", err)
		}
		if ok {
			if state.SourceDir != "" && state.SourceDir != absDir {
				logging.WarnWithContext(s.logger, "resuming tracking state from a different input directory", "tracking_source_mismatch",
					logging.String("tracked_dir", state.SourceDir),
					logging.String("input_dir", absDir),
					logging.String(logging.FieldErrorHint, "rerun with --new to start over for this directory"),
					logging.String(logging.FieldImpact, "pending items from the tracked directory are processed"),
				)
			}
			refs, err := s.ReadAll(ctx, ListPreprocess)
			if err != nil {
				return nil, err
			}
			s.logger.Info("resuming from tracking state",
				logging.String("source_dir", state.SourceDir),
				logging.Int("pending_preprocess", len(refs)),
			)
			return refs, nil
		}
	}

	refs, err := imageref.Scan(absDir)
	if err != nil {
		return nil, err
	}
	paths := dedupe(imageref.Paths(refs))
	state := RunState{SourceDir: absDir, DiscoveredAt: s.now().UTC()}
	if err := s.backend.reset(ctx, state, paths); err != nil {
		return nil, fmt.Errorf("write discovery: %w", err)
	}
	s.logger.Info("discovered input images",
		logging.String("source_dir", absDir),
		logging.Int("image_count", len(paths)),
		logging.Bool("reset", reset),
	)
	return s.ReadAll(ctx, ListPreprocess)
}

// Seed adds refs to the preprocess list, establishing tracking state for dir
// when none exists. Entries already present are left as they are.
func (s *Store) Seed(ctx context.Context, dir string, refs []imageref.Reference) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve input directory: %w", err)
	}
	if err := s.backend.ensureState(ctx, RunState{SourceDir: absDir, DiscoveredAt: s.now().UTC()}); err != nil {
		return fmt.Errorf("establish tracking state: %w", err)
	}
	for _, ref := range refs {
		if err := s.MarkPending(ctx, ListPreprocess, ref.Path); err != nil {
			return err
		}
	}
	return nil
}

// MarkPending records path in list. Adding an existing entry is a no-op.
func (s *Store) MarkPending(ctx context.Context, list List, path string) error {
	if err := validateEntry(list, path); err != nil {
		return err
	}
	if err := s.backend.add(ctx, list, path); err != nil {
		return fmt.Errorf("mark %s pending in %s: %w", filepath.Base(path), list, err)
	}
	return nil
}

// MarkDone removes path from list. Removing an absent entry is a no-op.
func (s *Store) MarkDone(ctx context.Context, list List, path string) error {
	if err := validateEntry(list, path); err != nil {
		return err
	}
	if err := s.backend.remove(ctx, list, path); err != nil {
		return fmt.Errorf("mark %s done in %s: %w", filepath.Base(path), list, err)
	}
	return nil
}

// Transfer atomically removes fromPath from one list and records toPath in another.
func (s *Store) Transfer(ctx context.Context, from List, fromPath string, to List, toPath string) error {
	if err := validateEntry(from, fromPath); err != nil {
		return err
	}
	if err := validateEntry(to, toPath); err != nil {
		return err
	}
	if err := s.backend.transfer(ctx, from, fromPath, to, toPath); err != nil {
		return fmt.Errorf("transfer %s from %s to %s: %w", filepath.Base(fromPath), from, to, err)
	}
	return nil
}

// ReadAll returns the entries of list in insertion order.
func (s *Store) ReadAll(ctx context.Context, list List) ([]imageref.Reference, error) {
	if !list.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
	paths, err := s.backend.read(ctx, list)
	if err != nil {
		return nil, fmt.Errorf("read %s list: %w", list, err)
	}
	refs := make([]imageref.Reference, 0, len(paths))
	for _, path := range paths {
		refs = append(refs, imageref.FromPath(path))
	}
	return refs, nil
}

// Counts returns the size of each list.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	pre, err := s.backend.read(ctx, ListPreprocess)
	if err != nil {
		return Counts{}, fmt.Errorf("read %s list: %w", ListPreprocess, err)
	}
	tr, err := s.backend.read(ctx, ListTranscribe)
	if err != nil {
		return Counts{}, fmt.Errorf("read %s list: %w", ListTranscribe, err)
	}
	return Counts{Preprocess: len(pre), Transcribe: len(tr)}, nil
}

// Snapshot captures the full tracking state.
func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	state, ok, err := s.backend.state(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read tracking state: %w", err)
	}
	snap := Snapshot{Backend: s.backend.name(), Started: ok, State: state}
	if snap.Preprocess, err = s.backend.read(ctx, ListPreprocess); err != nil {
		return Snapshot{}, fmt.Errorf("read %s list: %w", ListPreprocess, err)
	}
	if snap.Transcribe, err = s.backend.read(ctx, ListTranscribe); err != nil {
		return Snapshot{}, fmt.Errorf("read %s list: %w", ListTranscribe, err)
	}
	return snap, nil
}

// Clear deletes every tracking file. The store remains usable; the next
// mutation starts from empty state.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.clear(ctx); err != nil {
		return fmt.Errorf("clear tracking state: %w", err)
	}
	s.logger.Debug("tracking state cleared", logging.String("backend", s.backend.name()))
	return nil
}

// Close releases backend resources.
func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.close()
}

func validateEntry(list List, path string) error {
	if !list.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownList, list)
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("tracking: empty path")
	}
	if strings.ContainsAny(path, "\r\n") {
		return fmt.Errorf("tracking: path %q contains a line break", path)
	}
	return nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		out = append(out, path)
	}
	return out
}
