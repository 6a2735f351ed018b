package upstream

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeExchanger struct {
	provider  string
	token     string
	expiresIn time.Duration
	err       error
	calls     int
}

func (f *fakeExchanger) Provider() string { return f.provider }

func (f *fakeExchanger) Exchange(ctx context.Context) (string, time.Duration, error) {
	f.calls++
	if f.err != nil {
		return "", 0, f.err
	}
	return f.token, f.expiresIn, nil
}

func TestTokenCacheReusesFreshToken(t *testing.T) {
	now := time.Date(2026, 1, 18, 10, 0, 0, 0, time.UTC)
	cache := NewTokenCacheWithClock(func() time.Time { return now })
	ex := &fakeExchanger{provider: "fortuna", token: "tok-1", expiresIn: time.Hour}

	tok, err := cache.Token(context.Background(), ex)
	if err != nil {
		t.Fatalf("first Token: %v", err)
	}
	if tok != "tok-1" {
		t.Fatalf("got token %q, want tok-1", tok)
	}

	ex.token = "tok-2"
	tok, err = cache.Token(context.Background(), ex)
	if err != nil {
		t.Fatalf("second Token: %v", err)
	}
	if tok != "tok-1" {
		t.Fatalf("expected cached token, got %q", tok)
	}
	if ex.calls != 1 {
		t.Fatalf("expected 1 exchange, got %d", ex.calls)
	}
}

func TestTokenCacheRefreshesInsideExpiryMargin(t *testing.T) {
	now := time.Date(2026, 1, 18, 10, 0, 0, 0, time.UTC)
	cache := NewTokenCacheWithClock(func() time.Time { return now })
	ex := &fakeExchanger{provider: "fortuna", token: "tok-1", expiresIn: 2 * time.Minute}

	if _, err := cache.Token(context.Background(), ex); err != nil {
		t.Fatalf("first Token: %v", err)
	}

	// 70s in, the 120s token is within the 60s margin of expiry.
	now = now.Add(70 * time.Second)
	ex.token = "tok-2"
	tok, err := cache.Token(context.Background(), ex)
	if err != nil {
		t.Fatalf("second Token: %v", err)
	}
	if tok != "tok-2" {
		t.Fatalf("expected refreshed token, got %q", tok)
	}
	if ex.calls != 2 {
		t.Fatalf("expected 2 exchanges, got %d", ex.calls)
	}
}

func TestTokenCacheDoesNotCacheFailures(t *testing.T) {
	cache := NewTokenCache()
	ex := &fakeExchanger{provider: "zanalytics", err: errors.New("boom")}

	_, err := cache.Token(context.Background(), ex)
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}

	ex.err = nil
	ex.token = "tok-after-failure"
	ex.expiresIn = time.Hour
	tok, err := cache.Token(context.Background(), ex)
	if err != nil {
		t.Fatalf("Token after failure: %v", err)
	}
	if tok != "tok-after-failure" {
		t.Fatalf("got token %q", tok)
	}
	if ex.calls != 2 {
		t.Fatalf("expected retry on next call, got %d calls", ex.calls)
	}
}

func TestTokenCacheInvalidateForcesExchange(t *testing.T) {
	cache := NewTokenCache()
	ex := &fakeExchanger{provider: "fortuna", token: "tok-1", expiresIn: time.Hour}

	if _, err := cache.Token(context.Background(), ex); err != nil {
		t.Fatalf("first Token: %v", err)
	}
	cache.Invalidate("fortuna")
	if _, err := cache.Token(context.Background(), ex); err != nil {
		t.Fatalf("second Token: %v", err)
	}
	if ex.calls != 2 {
		t.Fatalf("expected 2 exchanges after Invalidate, got %d", ex.calls)
	}
}
