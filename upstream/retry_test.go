package upstream

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noSleep(ctx context.Context, d time.Duration) error { return nil }

func TestRetryRecoversWithinBudget(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, sleep: noSleep}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &TransientError{Provider: "fortuna", StatusCode: 500}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 2 retries then success (3 calls), got %d", calls)
	}
}

func TestRetryStopsAtBudget(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, sleep: noSleep}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return &TransientError{Provider: "fortuna", StatusCode: 503}
	})
	var transient *TransientError
	if !errors.As(err, &transient) {
		t.Fatalf("expected TransientError after exhaustion, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestRetryDoesNotRetryRejections(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, sleep: noSleep}

	calls := 0
	err := p.Do(context.Background(), func() error {
		calls++
		return &RejectedError{Provider: "fortuna", StatusCode: 404}
	})
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("4xx must not be retried, got %d calls", calls)
	}
}

func TestRetryDelayGrowsLinearly(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		sleep: func(ctx context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	}

	_ = p.Do(context.Background(), func() error {
		return &TransientError{Provider: "fortuna", StatusCode: 500}
	})
	if len(delays) != 2 {
		t.Fatalf("expected 2 sleeps, got %d", len(delays))
	}
	if delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Fatalf("unexpected delays %v", delays)
	}
}
