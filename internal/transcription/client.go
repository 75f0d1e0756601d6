package transcription

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"scrivener/internal/config"
	"scrivener/internal/imageref"
	"scrivener/internal/logging"
	"scrivener/internal/services"
)

const stageName = "transcribe"

// Request identifies the image to transcribe and the context fragment that
// accompanies it.
type Request struct {
	Image    imageref.Reference
	Fragment string
}

// AttemptError is returned once the client gives up on an image. It unwraps
// to the last failure.
type AttemptError struct {
	Image    string
	Attempts int
	Err      error
}

func (e *AttemptError) Error() string {
	if e.Attempts == 1 {
		return fmt.Sprintf("transcribe %s: %v", e.Image, e.Err)
	}
	return fmt.Sprintf("transcribe %s: failed after %d attempts: %v", e.Image, e.Attempts, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Client wraps a Backend with prompt composition, per-attempt timeouts and
// the retry policy.
type Client struct {
	backend    Backend
	policy     RetryPolicy
	timeout    time.Duration
	basePrompt string
	logger     *slog.Logger
	sleep      Sleeper
}

// Option customizes the client.
type Option func(*Client)

// WithTimeout bounds each attempt. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithPrompt overrides the base instruction. Blank values keep DefaultPrompt.
func WithPrompt(prompt string) Option {
	return func(c *Client) {
		c.basePrompt = strings.TrimSpace(prompt)
	}
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "transcriber")
	}
}

// WithSleeper overrides how retry waits are performed (useful for tests).
func WithSleeper(sleeper Sleeper) Option {
	return func(c *Client) {
		if sleeper != nil {
			c.sleep = sleeper
		}
	}
}

// NewClient constructs a client around backend.
func NewClient(backend Backend, policy RetryPolicy, opts ...Option) *Client {
	c := &Client{
		backend: backend,
		policy:  policy,
		logger:  logging.NewNop(),
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFromConfig builds the configured backend and wraps it in a Client.
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.RequireCredentials(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stageName, "credentials", "", err)
	}
	backend, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewClient(backend, PolicyFromConfig(cfg),
		WithTimeout(cfg.TranscriptionTimeout()),
		WithPrompt(cfg.Transcription.Prompt),
		WithLogger(logger),
	), nil
}

// Backend returns the provider name.
func (c *Client) Backend() string {
	return c.backend.Name()
}

// Policy returns the retry policy in effect.
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Prompt composes the full instruction for fragment.
func (c *Client) Prompt(fragment string) string {
	return BuildPrompt(c.basePrompt, fragment)
}

// HealthCheck verifies the backend is reachable and credentials are accepted.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.backend.HealthCheck(ctx)
}

// Transcribe sends the image with its prompt, retrying retriable failures
// according to the policy. Permanent failures return after one attempt;
// exhaustion returns an error wrapping the last failure.
func (c *Client) Transcribe(ctx context.Context, req Request) (string, error) {
	data, err := os.ReadFile(req.Image.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, stageName, "read image", req.Image.Base, err)
		}
		return "", services.Wrap(services.ErrPermanent, stageName, "read image", req.Image.Base, err)
	}
	if len(data) == 0 {
		return "", services.Wrap(services.ErrValidation, stageName, "read image", req.Image.Base+" is empty", nil)
	}
	in := Input{
		Name:     req.Image.Base,
		Image:    data,
		MIMEType: MIMEType(req.Image.Path),
		Prompt:   c.Prompt(req.Fragment),
	}

	attempts := c.policy.Attempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		text, err := c.attempt(ctx, in, attempt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", &AttemptError{Image: in.Name, Attempts: attempt, Err: ctx.Err()}
		}
		if !services.IsRetriable(err) {
			return "", &AttemptError{Image: in.Name, Attempts: attempt, Err: err}
		}
		if attempt == attempts {
			break
		}

		delay := c.retryDelay(err, attempt)
		logging.WarnWithContext(logging.WithContext(services.WithAttempt(ctx, attempt), c.logger),
			"transcription attempt failed; retrying", "transcription_retry",
			logging.Int("max_attempts", attempts),
			logging.String("reason", services.Kind(err)),
			logging.Duration("delay", delay),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "provider may be overloaded or rate limiting"),
			logging.String(logging.FieldImpact, "image is retried after the delay"),
		)
		if err := c.sleep(ctx, delay); err != nil {
			return "", &AttemptError{Image: in.Name, Attempts: attempt, Err: err}
		}
	}
	return "", &AttemptError{Image: in.Name, Attempts: attempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, in Input, attempt int) (string, error) {
	attemptCtx := services.WithAttempt(ctx, attempt)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(attemptCtx, c.timeout)
		defer cancel()
	}
	start := time.Now()
	text, err := c.backend.Transcribe(attemptCtx, in)
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, stageName, c.backend.Name(),
				fmt.Sprintf("attempt exceeded %s", c.timeout), err)
		}
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", services.Wrap(services.ErrTransient, stageName, c.backend.Name(), "empty response", nil)
	}
	logging.WithContext(attemptCtx, c.logger).Debug("transcription attempt succeeded",
		logging.String("backend", c.backend.Name()),
		logging.Int("chars", len(text)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

func (c *Client) retryDelay(err error, attempt int) time.Duration {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return c.policy.Cap(statusErr.RetryAfter)
	}
	return c.policy.Backoff(attempt)
}
