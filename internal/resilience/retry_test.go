package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsWithoutRetry(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{}, nil, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, Factor: 2}
	err := Retry(context.Background(), cfg, func(error) bool { return true }, func() error {
		calls++
		if calls < 3 {
			return errTest
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_ExhaustsMaxAttempts(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, Factor: 2}
	err := Retry(context.Background(), cfg, func(error) bool { return true }, func() error {
		calls++
		return errTest
	})
	if !errors.Is(err, errTest) {
		t.Errorf("err = %v, want errTest", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestRetry_StopsWhenShouldRetryFalse(t *testing.T) {
	calls := 0
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: time.Millisecond}
	err := Retry(context.Background(), cfg, func(error) bool { return false }, func() error {
		calls++
		return errTest
	})
	if !errors.Is(err, errTest) {
		t.Errorf("err = %v, want errTest", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-retryable should stop immediately)", calls)
	}
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 5, InitialBackoff: 50 * time.Millisecond}

	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func(error) bool { return true }, func() error {
		calls++
		return errTest
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want wrapped context.Canceled", err)
	}
	if calls >= cfg.MaxAttempts {
		t.Errorf("calls = %d, want fewer than MaxAttempts since context was cancelled", calls)
	}
}
