// Package retry provides a bounded retry-with-backoff wrapper around a
// fallible operation.
package retry

import (
	"context"
	"log"
	"strings"
	"time"
)

// MaxDelay caps the backoff delay between attempts.
const MaxDelay = 300 * time.Second

// Executor retries a fallible operation a bounded number of times.
//
// MaxRetries and InitialDelay bounds ([1,10] and [1,300]s) are validated at
// configuration time, not here.
type Executor struct {
	// MaxRetries is the number of retries after the first attempt, so an
	// operation is attempted at most MaxRetries+1 times.
	MaxRetries int
	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration
	// ExponentialBackoff doubles the delay after each retry, capped at MaxDelay.
	ExponentialBackoff bool
	// RetryablePatterns restricts which failures are retried: when non-empty,
	// a failure message must contain at least one pattern (case-insensitive)
	// to be retried. When empty, all failures are retryable.
	RetryablePatterns []string

	// Sleep is the delay function; overridable for tests. Defaults to a
	// context-aware sleep.
	Sleep func(ctx context.Context, d time.Duration)
	// Logf receives per-attempt progress lines; observability only.
	// Defaults to log.Printf.
	Logf func(format string, args ...interface{})
}

// Execute runs op up to MaxRetries+1 times. On a retryable failure it sleeps
// the current delay before the next attempt. The terminal failure is returned
// unwrapped; classification and logging of it belong to the caller.
func (e *Executor) Execute(ctx context.Context, description string, op func() error) error {
	sleep := e.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	logf := e.Logf
	if logf == nil {
		logf = log.Printf
	}

	delay := e.InitialDelay
	attempts := e.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		logf("attempt %d/%d: %s", attempt, attempts, description)

		lastErr = op()
		if lastErr == nil {
			if attempt > 1 {
				logf("%s succeeded after %d attempts", description, attempt)
			}
			return nil
		}

		if !e.retryable(lastErr) {
			logf("%s failed with non-retryable error: %v", description, lastErr)
			return lastErr
		}
		if attempt == attempts {
			break
		}

		logf("%s failed (attempt %d/%d), retrying in %s: %v", description, attempt, attempts, delay, lastErr)
		sleep(ctx, delay)
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}

		if e.ExponentialBackoff {
			delay *= 2
			if delay > MaxDelay {
				delay = MaxDelay
			}
		}
	}

	logf("%s failed after %d attempts: %v", description, attempts, lastErr)
	return lastErr
}

// retryable reports whether err qualifies for a retry under the configured
// patterns.
func (e *Executor) retryable(err error) bool {
	if len(e.RetryablePatterns) == 0 {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range e.RetryablePatterns {
		if strings.Contains(msg, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// sleepWithContext sleeps for d or until ctx is cancelled, whichever is first.
func sleepWithContext(ctx context.Context, d time.Duration) {
	if ctx == nil {
		time.Sleep(d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
