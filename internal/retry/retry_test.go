package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetrySucceedsImmediately(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), nil, Options{MaxRetries: 3, BaseDelay: time.Millisecond}, func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call on immediate success, got %d", calls)
	}
}

func TestWithRetryRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), nil, Options{MaxRetries: 3, BaseDelay: time.Millisecond}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryExhaustsAndReturnsLastError(t *testing.T) {
	calls := 0
	sentinel := errors.New("boom")
	err := WithRetry(context.Background(), nil, Options{MaxRetries: 2, BaseDelay: time.Millisecond}, func() error {
		calls++
		return sentinel
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel error, got %v", err)
	}
	if calls != 3 { // initial attempt + 2 retries
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := WithRetry(ctx, nil, Options{MaxRetries: 5, BaseDelay: time.Second}, func() error {
		calls++
		return errors.New("transient")
	})
	if err == nil {
		t.Fatal("expected an error when context is already cancelled")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call before the cancelled context aborts retries, got %d", calls)
	}
}
