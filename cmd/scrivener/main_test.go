package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"scrivener/internal/testsupport"
	"scrivener/internal/tracking"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   int
		stderr string
	}{
		{"success", nil, exitSuccess, ""},
		{"partial", &exitError{code: exitPartial}, exitPartial, ""},
		{"fatal", errors.New("boom"), exitFatal, "Error: boom\n"},
		{"message", &exitError{code: exitFatal, msg: "checks failed"}, exitFatal, "checks failed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := exitCode(tt.err, &buf); got != tt.want {
				t.Fatalf("exitCode = %d, want %d", got, tt.want)
			}
			if buf.String() != tt.stderr {
				t.Fatalf("stderr = %q, want %q", buf.String(), tt.stderr)
			}
		})
	}
}

func TestRunCommandSuccess(t *testing.T) {
	for _, backend := range []string{"sqlite", "text"} {
		t.Run(backend, func(t *testing.T) {
			env := setupCLITestEnv(t, backend)
			env.addImages(t, "page1", "page2")

			out, stderr, code := env.run(t, "run", env.inputDir)
			if code != exitSuccess {
				t.Fatalf("exit code %d, stderr:\n%s", code, stderr)
			}
			requireContains(t, out, "Outcome: SUCCESS")

			got := testsupport.ReadText(t, filepath.Join(env.outputDir, "page1.txt"))
			if got != "Dear Mother,\nAll is well.\n" {
				t.Fatalf("transcript = %q", got)
			}
			entries, err := os.ReadDir(env.stateDir)
			if err != nil {
				t.Fatal(err)
			}
			for _, e := range entries {
				if e.Name() != "scrivener.lock" {
					t.Fatalf("tracking file %s left after success", e.Name())
				}
			}
		})
	}
}

func TestRunCommandPartialThenResume(t *testing.T) {
	env := setupCLITestEnv(t, "sqlite")
	env.addImages(t, "good", "bad")
	rejectCtx := filepath.Join(env.contextDir, "bad_context.txt")
	testsupport.WriteText(t, rejectCtx, rejectMarker)

	out, _, code := env.run(t, "run", env.inputDir)
	if code != exitPartial {
		t.Fatalf("exit code %d, want %d\n%s", code, exitPartial, out)
	}
	requireContains(t, out, "Outcome: PARTIAL")
	requireContains(t, out, "bad.jpeg")
	// A 400 is permanent: one request per image.
	if n := env.requests.Load(); n != 2 {
		t.Fatalf("requests = %d, want 2", n)
	}

	statusOut, _, code := env.run(t, "status", "--output", "json")
	if code != exitSuccess {
		t.Fatalf("status exit %d", code)
	}
	var view statusView
	if err := json.Unmarshal([]byte(statusOut), &view); err != nil {
		t.Fatalf("decode status: %v\n%s", err, statusOut)
	}
	if !view.Started || view.Pending.Transcribe != 1 || view.Pending.Preprocess != 0 {
		t.Fatalf("unexpected status %+v", view)
	}

	if err := os.Remove(rejectCtx); err != nil {
		t.Fatal(err)
	}
	out, _, code = env.run(t, "run", env.inputDir)
	if code != exitSuccess {
		t.Fatalf("resume exit code %d\n%s", code, out)
	}
	requireContains(t, out, "resumed: yes")
	if n := env.requests.Load(); n != 3 {
		t.Fatalf("resume should send only the pending image, total requests = %d", n)
	}
}

func TestRunCommandFatalErrors(t *testing.T) {
	env := setupCLITestEnv(t, "sqlite")

	_, stderr, code := env.run(t, "run", filepath.Join(env.baseDir, "missing"))
	if code != exitFatal {
		t.Fatalf("missing input: exit %d", code)
	}
	requireContains(t, stderr, "Error:")

	env.addImages(t, "a")
	lock, err := tracking.AcquireLock(filepath.Join(env.stateDir, "scrivener.lock"))
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()
	_, stderr, code = env.run(t, "run", env.inputDir)
	if code != exitFatal {
		t.Fatalf("held lock: exit %d", code)
	}
	requireContains(t, stderr, "another scrivener run")

	_, _, code = env.run(t, "run")
	if code != exitFatal {
		t.Fatalf("missing argument: exit %d", code)
	}
}

func TestRunCommandRejectsOutputDirAsInput(t *testing.T) {
	env := setupCLITestEnv(t, "sqlite")
	testsupport.WriteImage(t, filepath.Join(env.outputDir, "scan.jpeg"), 24, 16)
	before, err := os.ReadFile(filepath.Join(env.outputDir, "scan.jpeg"))
	if err != nil {
		t.Fatal(err)
	}

	_, stderr, code := env.run(t, "run", env.outputDir+string(filepath.Separator))
	if code != exitFatal {
		t.Fatalf("exit %d, want %d", code, exitFatal)
	}
	requireContains(t, stderr, "is also the output directory")
	if env.requests.Load() != 0 {
		t.Fatalf("no transcription request expected, got %d", env.requests.Load())
	}
	after, err := os.ReadFile(filepath.Join(env.outputDir, "scan.jpeg"))
	if err != nil || !bytes.Equal(before, after) {
		t.Fatalf("source scan in the output directory was modified (err=%v)", err)
	}
	if fileExists(filepath.Join(env.stateDir, "scrivener.lock")) {
		t.Fatal("rejected run should not take the lock")
	}
}

func TestRunCommandNewRestarts(t *testing.T) {
	env := setupCLITestEnv(t, "text")
	env.addImages(t, "a", "b")
	testsupport.WriteText(t, filepath.Join(env.contextDir, "b_context.txt"), rejectMarker)
	if _, _, code := env.run(t, "run", env.inputDir); code != exitPartial {
		t.Fatalf("first run exit %d", code)
	}
	if err := os.Remove(filepath.Join(env.contextDir, "b_context.txt")); err != nil {
		t.Fatal(err)
	}

	out, _, code := env.run(t, "run", "--new", env.inputDir)
	if code != exitSuccess {
		t.Fatalf("--new exit %d\n%s", code, out)
	}
	requireContains(t, out, "resumed: no")
	if n := env.requests.Load(); n != 4 {
		t.Fatalf("--new should resend every image, total requests = %d", n)
	}
}
