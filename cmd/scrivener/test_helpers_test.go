package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"scrivener/internal/testsupport"
)

// rejectMarker in an image's context makes the fake backend answer 400.
const rejectMarker = "REJECT-THIS-IMAGE"

type cliTestEnv struct {
	baseDir    string
	configPath string
	inputDir   string
	stateDir   string
	outputDir  string
	contextDir string
	server     *httptest.Server
	requests   atomic.Int64
}

func setupCLITestEnv(t *testing.T, backend string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("OPENROUTER_API_KEY", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "scrivener.toml"),
		inputDir:   filepath.Join(base, "input"),
		stateDir:   filepath.Join(base, "state"),
		outputDir:  filepath.Join(base, "output"),
		contextDir: filepath.Join(base, "context"),
	}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.requests.Add(1)
		body, _ := io.ReadAll(r.Body)
		if bytes.Contains(body, []byte(rejectMarker)) {
			http.Error(w, `{"error":{"message":"bad image"}}`, http.StatusBadRequest)
			return
		}
		payload := map[string]any{
			"choices": []any{map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"content": "Here is the transcribed text from the image:\nDear Mother,\nAll is well."},
			}},
		}
		_ = json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(env.server.Close)

	writeTestConfig(t, env.configPath, fmt.Sprintf(`[paths]
state_dir = %q
output_dir = %q
context_dir = %q
log_dir = %q

[tracking]
backend = %q

[transcription]
provider = "openrouter"
base_url = %q
api_key = "test"
max_retries = 2
retry_delay_seconds = 0

[logging]
level = "error"
`, env.stateDir, env.outputDir, env.contextDir, filepath.Join(base, "logs"), backend, env.server.URL))
	return env
}

func writeTestConfig(t *testing.T, path, content string) {
	t.Helper()
	testsupport.WriteText(t, path, content)
}

func (e *cliTestEnv) addImages(t *testing.T, stems ...string) {
	t.Helper()
	for _, stem := range stems {
		testsupport.WriteImage(t, filepath.Join(e.inputDir, stem+".png"), 24, 16)
	}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath}, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(args, &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
