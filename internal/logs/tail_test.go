package logs

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatal(err)
	}
}

func TestLast(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrivener.log")
	writeLog(t, path, "one\ntwo\nthree\nfour\n")

	tests := []struct {
		limit int
		want  []string
	}{
		{2, []string{"three", "four"}},
		{10, []string{"one", "two", "three", "four"}},
		{0, nil},
	}
	for _, tt := range tests {
		lines, offset, err := Last(path, tt.limit)
		if err != nil {
			t.Fatalf("Last(%d): %v", tt.limit, err)
		}
		if !slices.Equal(lines, tt.want) {
			t.Fatalf("Last(%d) = %v, want %v", tt.limit, lines, tt.want)
		}
		if offset != int64(len("one\ntwo\nthree\nfour\n")) {
			t.Fatalf("offset = %d", offset)
		}
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := Last(filepath.Join(t.TempDir(), "absent.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("got %v %d %v", lines, offset, err)
	}
}

func TestReadFromKeepsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrivener.log")
	writeLog(t, path, "done\npartial")

	lines, offset, err := readFrom(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(lines, []string{"done"}) || offset != 5 {
		t.Fatalf("lines=%v offset=%d", lines, offset)
	}

	writeLog(t, path, " line\n")
	lines, _, err = readFrom(path, offset)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(lines, []string{"partial line"}) {
		t.Fatalf("lines = %v", lines)
	}
}

func TestFollowStreamsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrivener.log")
	writeLog(t, path, "old\n")
	_, offset, err := Last(path, 0)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Follow(ctx, path, offset, func(line string) { got <- line })
	}()

	// Allow the watch to register; earlier writes are caught up on anyway.
	time.Sleep(50 * time.Millisecond)
	writeLog(t, path, "new\n")

	select {
	case line := <-got:
		if line != "new" {
			t.Fatalf("line = %q", line)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for appended line")
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow: %v", err)
	}
}
