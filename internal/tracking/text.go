package tracking

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"scrivener/internal/fileutil"
)

const (
	textPreprocessFile = "pending_preprocess.txt"
	textTranscribeFile = "pending_transcription.txt"

	headerSource     = "# source: "
	headerDiscovered = "# discovered: "
)

// textBackend stores each list as a UTF-8 file with one absolute path per
// line. Lines starting with '#' are metadata; the preprocess file's header
// carries the run state and its presence marks discovery as done. Every
// mutation rewrites the file through a temp file and rename.
type textBackend struct {
	mu  sync.Mutex
	dir string
}

type textList struct {
	header []string
	paths  []string
}

func newTextBackend(dir string) (*textBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &textBackend{dir: dir}, nil
}

func (b *textBackend) name() string { return "text" }

func (b *textBackend) files() []string {
	return []string{b.pathFor(ListPreprocess), b.pathFor(ListTranscribe)}
}

func (b *textBackend) pathFor(list List) string {
	if list == ListTranscribe {
		return filepath.Join(b.dir, textTranscribeFile)
	}
	return filepath.Join(b.dir, textPreprocessFile)
}

func (b *textBackend) load(list List) (textList, bool, error) {
	data, err := os.ReadFile(b.pathFor(list))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return textList{}, false, nil
		}
		return textList{}, false, err
	}
	var tl textList
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.HasPrefix(line, "#") {
			tl.header = append(tl.header, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		tl.paths = append(tl.paths, line)
	}
	if err := scanner.Err(); err != nil {
		return textList{}, false, err
	}
	return tl, true, nil
}

func (b *textBackend) store(list List, tl textList) error {
	var buf bytes.Buffer
	if len(tl.header) == 0 {
		tl.header = []string{fmt.Sprintf("# scrivener pending list: %s", list)}
	}
	for _, line := range tl.header {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	for _, path := range tl.paths {
		buf.WriteString(path)
		buf.WriteByte('\n')
	}
	return fileutil.WriteAtomic(b.pathFor(list), buf.Bytes(), 0o644)
}

func (b *textBackend) state(context.Context) (RunState, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tl, ok, err := b.load(ListPreprocess)
	if err != nil || !ok {
		return RunState{}, false, err
	}
	return parseHeader(tl.header), true, nil
}

func parseHeader(lines []string) RunState {
	var state RunState
	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, headerSource):
			state.SourceDir = strings.TrimPrefix(line, headerSource)
		case strings.HasPrefix(line, headerDiscovered):
			if ts, err := time.Parse(time.RFC3339Nano, strings.TrimPrefix(line, headerDiscovered)); err == nil {
				state.DiscoveredAt = ts
			}
		}
	}
	return state
}

func stateHeader(state RunState) []string {
	return []string{
		fmt.Sprintf("# scrivener pending list: %s", ListPreprocess),
		headerSource + state.SourceDir,
		headerDiscovered + state.DiscoveredAt.UTC().Format(time.RFC3339Nano),
	}
}

func (b *textBackend) reset(_ context.Context, state RunState, paths []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := fileutil.RemoveIfExists(b.pathFor(ListTranscribe)); err != nil {
		return err
	}
	return b.store(ListPreprocess, textList{header: stateHeader(state), paths: dedupe(paths)})
}

func (b *textBackend) ensureState(_ context.Context, state RunState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok, err := b.load(ListPreprocess)
	if err != nil || ok {
		return err
	}
	return b.store(ListPreprocess, textList{header: stateHeader(state)})
}

func (b *textBackend) add(_ context.Context, list List, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addLocked(list, path)
}

func (b *textBackend) addLocked(list List, path string) error {
	tl, _, err := b.load(list)
	if err != nil {
		return err
	}
	for _, existing := range tl.paths {
		if existing == path {
			return nil
		}
	}
	tl.paths = append(tl.paths, path)
	return b.store(list, tl)
}

func (b *textBackend) remove(_ context.Context, list List, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(list, path)
}

func (b *textBackend) removeLocked(list List, path string) error {
	tl, ok, err := b.load(list)
	if err != nil || !ok {
		return err
	}
	kept := tl.paths[:0]
	removed := false
	for _, existing := range tl.paths {
		if existing == path {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return nil
	}
	tl.paths = kept
	return b.store(list, tl)
}

// transfer writes the destination first. A crash between the two renames
// leaves the item in both lists, which reruns resolve idempotently.
func (b *textBackend) transfer(_ context.Context, from List, fromPath string, to List, toPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.addLocked(to, toPath); err != nil {
		return err
	}
	return b.removeLocked(from, fromPath)
}

func (b *textBackend) read(_ context.Context, list List) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	tl, _, err := b.load(list)
	if err != nil {
		return nil, err
	}
	return tl.paths, nil
}

func (b *textBackend) clear(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, file := range b.files() {
		if err := fileutil.RemoveIfExists(file); err != nil {
			return err
		}
	}
	return nil
}

func (b *textBackend) close() error { return nil }
