package transcription

import (
	"context"
	"math"
	"time"

	"scrivener/internal/config"
)

// maxBackoff bounds uncapped policies so large exponents cannot overflow.
const maxBackoff = 24 * time.Hour

// RetryPolicy bounds transcription attempts. MaxAttempts counts the first
// call, so a policy of 3 makes at most three backend calls.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// PolicyFromConfig reads the retry settings of the transcription section.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: cfg.Transcription.MaxRetries,
		Delay:       cfg.RetryDelay(),
		Multiplier:  cfg.Transcription.BackoffMultiplier,
		MaxDelay:    cfg.MaxRetryDelay(),
	}
}

// Attempts returns the total number of calls allowed, at least one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the wait after failed attempt n (1-based):
// Delay * Multiplier^(n-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.Delay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(p.Delay) * math.Pow(mult, float64(attempt-1))
	if delay > float64(maxBackoff) {
		return p.Cap(maxBackoff)
	}
	return p.Cap(time.Duration(delay))
}

// Cap clamps delay to [0, MaxDelay]. A zero MaxDelay disables the cap.
func (p RetryPolicy) Cap(delay time.Duration) time.Duration {
	if delay < 0 {
		return 0
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
