package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func quickRetryPolicy(maxAttempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
	}
}

func TestIsBusy(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrStoreBusy, true},
		{errors.New("database is locked"), true},
		{errors.New("SQLITE_BUSY: database is busy"), true},
		{errors.New("UNIQUE constraint failed"), false},
	}
	for _, tc := range cases {
		if got := IsBusy(tc.err); got != tc.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := quickRetryPolicy(5).Do(context.Background(), func() error {
		attempts++
		if attempts < 4 {
			return ErrStoreBusy
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
}

func TestDo_NonTransientReturnsImmediately(t *testing.T) {
	permanent := errors.New("constraint violation")
	attempts := 0
	err := quickRetryPolicy(5).Do(context.Background(), func() error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Errorf("error = %v, want the original permanent error", err)
	}
	if errors.Is(err, ErrPersistenceFailed) {
		t.Error("permanent error must not be wrapped in ErrPersistenceFailed")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestDo_ExhaustedRetriesWrapped(t *testing.T) {
	attempts := 0
	err := quickRetryPolicy(3).Do(context.Background(), func() error {
		attempts++
		return ErrStoreBusy
	})
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Errorf("error = %v, want ErrPersistenceFailed", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDo_ContextCancelledBetweenAttempts(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts: 10,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	attempts := 0
	err := policy.Do(ctx, func() error {
		attempts++
		return ErrStoreBusy
	})
	if err != context.DeadlineExceeded {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 before the deadline cut in", attempts)
	}
}

func TestDo_CustomRetryablePredicate(t *testing.T) {
	networkErr := errors.New("connection reset")
	policy := quickRetryPolicy(3)
	policy.Retryable = func(err error) bool { return err == networkErr }

	attempts := 0
	err := policy.Do(context.Background(), func() error {
		attempts++
		return networkErr
	})
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Errorf("error = %v, want ErrPersistenceFailed", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
