package inference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryConfig defines retry behavior for request attempts. Backoff is linear:
// after attempt n the controller sleeps n * Backoff before trying again.
type RetryConfig struct {
	MaxAttempts int
	Backoff     time.Duration

	// sleep is swapped out by tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryConfig returns the standard three-attempt, two-second-unit
// retry schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Backoff:     2 * time.Second,
	}
}

// guidanceHints are the fixed suggestions attached to a terminal failure.
// They are static text shown to the user, not diagnosed causes.
var guidanceHints = []string{
	"Check your network connection",
	"Verify that your API key is valid",
	"Try a different network or a VPN",
	"Wait a moment and retry",
}

// GuidanceHints returns the fixed human-guidance hints included in every
// TerminalError.
func GuidanceHints() []string {
	ret := make([]string, len(guidanceHints))
	copy(ret, guidanceHints)
	return ret
}

// TerminalError reports that all retry attempts were exhausted. Its text is
// meant to be shown (and persisted) as the assistant's reply so the
// conversation log records what happened.
type TerminalError struct {
	Attempts int
	Err      error
	Hints    []string
}

func (e *TerminalError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "request failed after %d attempts: %v\n\nPossible solutions:\n", e.Attempts, e.Err)
	for i, hint := range e.Hints {
		fmt.Fprintf(&sb, "%d. %s", i+1, hint)
		if i < len(e.Hints)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (e *TerminalError) Unwrap() error { return e.Err }

// WithRetry executes fn up to cfg.MaxAttempts times. Every attempt is a fresh
// request; no partial state carries over. On exhaustion it returns a
// *TerminalError wrapping the last underlying error. Cancellation during a
// backoff sleep surfaces ctx.Err() directly.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultRetryConfig().Backoff
	}
	sleep := cfg.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("operation succeeded after retry")
			}
			return result, nil
		}

		lastErr = err

		// Don't sleep after the last attempt
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := time.Duration(attempt) * cfg.Backoff

		log.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Int("max_attempts", cfg.MaxAttempts).
			Dur("retry_delay", delay).
			Msg("retrying operation after error")

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, &TerminalError{
		Attempts: cfg.MaxAttempts,
		Err:      lastErr,
		Hints:    GuidanceHints(),
	}
}

// sleepContext waits for d with context cancellation support.
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
