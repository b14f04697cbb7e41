package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrStoreBusy marks a transient busy/locked condition worth retrying
	ErrStoreBusy = errors.New("store busy")
	// ErrPersistenceFailed indicates a write exhausted its retries
	ErrPersistenceFailed = errors.New("persistence failed")
)

// IsBusy reports whether err looks like a transient SQLite busy/locked
// condition
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStoreBusy) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database is busy") ||
		strings.Contains(msg, "database table is locked")
}

// RetryPolicy retries an operation on transient failures with bounded
// exponential backoff. The zero value is not usable; construct with
// DefaultRetryPolicy or fill every field.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable decides whether a failure is transient. Defaults to
	// IsBusy when nil.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns the gateway's standard policy: maxAttempts
// tries with 100ms/200ms/400ms/... backoff capped at 2s.
func DefaultRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    2 * time.Second,
	}
}

// Do runs op, retrying transient failures until MaxAttempts is exhausted.
// A persistent failure or exhausted retries surface as
// ErrPersistenceFailed wrapping the last error; non-transient errors are
// returned as-is after the first attempt.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsBusy
	}

	delay := p.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}
		if attempt == p.MaxAttempts {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", ErrPersistenceFailed, p.MaxAttempts, lastErr)
}
