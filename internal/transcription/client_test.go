package transcription

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"scrivener/internal/imageref"
	"scrivener/internal/services"
	"scrivener/internal/testsupport"
)

type scriptedBackend struct {
	mu      sync.Mutex
	results []scriptedResult
	inputs  []Input
	block   bool
}

type scriptedResult struct {
	text string
	err  error
}

func (b *scriptedBackend) Name() string { return "scripted" }

func (b *scriptedBackend) Transcribe(ctx context.Context, in Input) (string, error) {
	b.mu.Lock()
	b.inputs = append(b.inputs, in)
	call := len(b.inputs) - 1
	b.mu.Unlock()
	if b.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if len(b.results) == 0 {
		return "ok", nil
	}
	if call >= len(b.results) {
		call = len(b.results) - 1
	}
	return b.results[call].text, b.results[call].err
}

func (b *scriptedBackend) HealthCheck(context.Context) error { return nil }

func (b *scriptedBackend) calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.inputs)
}

type recordingSleeper struct {
	delays []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return ctx.Err()
}

func testImage(t *testing.T) imageref.Reference {
	t.Helper()
	path := filepath.Join(t.TempDir(), "letter.jpeg")
	testsupport.WriteImage(t, path, 8, 8)
	return imageref.FromPath(path)
}

func transientErr() error {
	return services.Wrap(services.ErrTransient, "transcribe", "scripted", "overloaded", nil)
}

func testPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Delay: 5 * time.Second, Multiplier: 3, MaxDelay: 300 * time.Second}
}

func TestTranscribeSucceedsFirstAttempt(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{{text: "Dear Mother,"}}}
	sleeper := &recordingSleeper{}
	client := NewClient(backend, testPolicy(3), WithSleeper(sleeper.sleep))

	text, err := client.Transcribe(context.Background(), Request{Image: testImage(t), Fragment: "1890s letters"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "Dear Mother," {
		t.Fatalf("text = %q", text)
	}
	if backend.calls() != 1 || len(sleeper.delays) != 0 {
		t.Fatalf("calls=%d sleeps=%d, want 1 and 0", backend.calls(), len(sleeper.delays))
	}
	in := backend.inputs[0]
	if !strings.HasPrefix(in.Prompt, "Given the context: 1890s letters\n") {
		t.Fatalf("prompt missing context prefix: %q", in.Prompt)
	}
	if in.MIMEType != "image/jpeg" || len(in.Image) == 0 || in.Name != "letter.jpeg" {
		t.Fatalf("unexpected input %+v", in)
	}
}

func TestTranscribeRetryBound(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		attempts  int
		wantCalls int
		wantRetry bool
	}{
		{"transient exhausts policy", transientErr(), 3, 3, true},
		{"single attempt policy", transientErr(), 1, 1, true},
		{"zero attempts still calls once", transientErr(), 0, 1, true},
		{"permanent fails fast", services.Wrap(services.ErrPermanent, "transcribe", "scripted", "bad request", nil), 3, 1, false},
		{"http 400 fails fast", &StatusError{Provider: "scripted", StatusCode: 400}, 3, 1, false},
		{"http 503 retried", &StatusError{Provider: "scripted", StatusCode: 503}, 4, 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &scriptedBackend{results: []scriptedResult{{err: tt.err}}}
			sleeper := &recordingSleeper{}
			client := NewClient(backend, testPolicy(tt.attempts), WithSleeper(sleeper.sleep))

			_, err := client.Transcribe(context.Background(), Request{Image: testImage(t)})
			if err == nil {
				t.Fatal("expected error")
			}
			if backend.calls() != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", backend.calls(), tt.wantCalls)
			}
			if len(sleeper.delays) != tt.wantCalls-1 {
				t.Fatalf("sleeps = %d, want %d", len(sleeper.delays), tt.wantCalls-1)
			}
			if !errors.Is(err, tt.err) {
				t.Fatalf("error %v does not wrap last failure", err)
			}
			var attemptErr *AttemptError
			if !errors.As(err, &attemptErr) || attemptErr.Attempts != tt.wantCalls {
				t.Fatalf("expected AttemptError with %d attempts, got %v", tt.wantCalls, err)
			}
			if services.IsRetriable(err) != tt.wantRetry {
				t.Fatalf("IsRetriable = %v, want %v", services.IsRetriable(err), tt.wantRetry)
			}
		})
	}
}

func TestTranscribeBackoffSchedule(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{{err: transientErr()}}}
	sleeper := &recordingSleeper{}
	client := NewClient(backend, testPolicy(4), WithSleeper(sleeper.sleep))

	if _, err := client.Transcribe(context.Background(), Request{Image: testImage(t)}); err == nil {
		t.Fatal("expected error")
	}
	want := []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", sleeper.delays, want)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Fatalf("delay %d = %s, want %s", i, sleeper.delays[i], want[i])
		}
	}
}

func TestTranscribeRecoversAfterTransientFailure(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{
		{err: transientErr()},
		{text: ""},
		{text: "recovered"},
	}}
	sleeper := &recordingSleeper{}
	client := NewClient(backend, testPolicy(3), WithSleeper(sleeper.sleep))

	text, err := client.Transcribe(context.Background(), Request{Image: testImage(t)})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "recovered" || backend.calls() != 3 {
		t.Fatalf("text=%q calls=%d", text, backend.calls())
	}
}

func TestTranscribeRetryAfterOverridesBackoff(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{
		{err: &StatusError{Provider: "scripted", StatusCode: 429, RetryAfter: 7 * time.Second}},
		{err: &StatusError{Provider: "scripted", StatusCode: 429, RetryAfter: time.Hour}},
		{text: "done"},
	}}
	sleeper := &recordingSleeper{}
	client := NewClient(backend, testPolicy(3), WithSleeper(sleeper.sleep))

	if _, err := client.Transcribe(context.Background(), Request{Image: testImage(t)}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	want := []time.Duration{7 * time.Second, 300 * time.Second}
	if len(sleeper.delays) != 2 || sleeper.delays[0] != want[0] || sleeper.delays[1] != want[1] {
		t.Fatalf("delays = %v, want %v", sleeper.delays, want)
	}
}

func TestTranscribeAttemptTimeoutIsRetried(t *testing.T) {
	backend := &scriptedBackend{block: true}
	client := NewClient(backend, RetryPolicy{MaxAttempts: 2}, WithTimeout(10*time.Millisecond))

	_, err := client.Transcribe(context.Background(), Request{Image: testImage(t)})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if backend.calls() != 2 {
		t.Fatalf("calls = %d, want 2", backend.calls())
	}
}

func TestTranscribeStopsOnCancellation(t *testing.T) {
	backend := &scriptedBackend{results: []scriptedResult{{err: transientErr()}}}
	ctx, cancel := context.WithCancel(context.Background())
	client := NewClient(backend, testPolicy(5), WithSleeper(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	_, err := client.Transcribe(ctx, Request{Image: testImage(t)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if backend.calls() != 1 {
		t.Fatalf("calls = %d, want 1", backend.calls())
	}
}

func TestTranscribeMissingImage(t *testing.T) {
	backend := &scriptedBackend{}
	client := NewClient(backend, testPolicy(3))

	_, err := client.Transcribe(context.Background(), Request{Image: imageref.FromPath(filepath.Join(t.TempDir(), "gone.jpeg"))})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if backend.calls() != 0 {
		t.Fatalf("backend should not be called for a missing image")
	}
}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name, base, fragment, want string
	}{
		{"no context", "", "", DefaultPrompt},
		{"context", "", "Family letters", "Given the context: Family letters\n" + DefaultPrompt},
		{"custom base", "Transcribe.", "A\nB", "Given the context: A\nB\nTranscribe."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildPrompt(tt.base, tt.fragment); got != tt.want {
				t.Fatalf("BuildPrompt = %q, want %q", got, tt.want)
			}
		})
	}
}
