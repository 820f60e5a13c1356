package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"poolScout/internal/model"
)

const defaultBaseDelay = 100 * time.Millisecond

// RetryError is returned when every attempt failed with a retryable error.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("giving up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

var retryableMessages = []string{
	"network",
	"timeout",
	"timed out",
	"rate limit",
	"too many requests",
	"connection",
}

// IsRetryable reports whether err is a transient transport failure worth
// another attempt. Validation and duplicate errors never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if model.IsValidation(err) || model.IsDuplicate(err) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, model.ErrRetryable) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range retryableMessages {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// withRetry runs fn until it succeeds, fails with a non-retryable error or
// maxRetries retries are used. The delay doubles after each failure and is
// capped at maxDelay when maxDelay is positive. It returns the number of
// attempts made.
func withRetry(ctx context.Context, maxRetries int, baseDelay, maxDelay time.Duration, onRetry func(attempt int, err error, delay time.Duration), fn func(context.Context) error) (int, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	delay := baseDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return attempt, nil
		}
		if !IsRetryable(err) {
			return attempt, err
		}
		if attempt > maxRetries {
			return attempt, &RetryError{Attempts: attempt, Err: err}
		}

		if maxDelay > 0 && delay > maxDelay {
			delay = maxDelay
		}
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
