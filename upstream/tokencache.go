package upstream

import (
	"context"
	"sync"
	"time"
)

// TokenExchanger performs one credential exchange against a provider.
type TokenExchanger interface {
	Provider() string
	Exchange(ctx context.Context) (token string, expiresIn time.Duration, err error)
}

// tokenExpiryMargin keeps a token out of use once it is within this margin
// of its expiry.
const tokenExpiryMargin = 60 * time.Second

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// TokenCache holds one bearer token per provider and refreshes lazily.
// The mutex guards only the map; the exchange itself runs unlocked, so two
// callers racing on an expired token may both fetch. That duplicate fetch
// is accepted; serving a token past its margin is not.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]cachedToken
	now     func() time.Time
}

func NewTokenCache() *TokenCache {
	return &TokenCache{
		entries: make(map[string]cachedToken),
		now:     time.Now,
	}
}

// NewTokenCacheWithClock is for tests that need a fake clock.
func NewTokenCacheWithClock(now func() time.Time) *TokenCache {
	c := NewTokenCache()
	c.now = now
	return c
}

func (c *TokenCache) Token(ctx context.Context, ex TokenExchanger) (string, error) {
	provider := ex.Provider()

	c.mu.Lock()
	entry, ok := c.entries[provider]
	now := c.now()
	c.mu.Unlock()

	if ok && now.Add(tokenExpiryMargin).Before(entry.expiresAt) {
		return entry.token, nil
	}

	token, expiresIn, err := ex.Exchange(ctx)
	if err != nil {
		// Never cache a failed exchange.
		return "", &AuthError{Provider: provider, Err: err}
	}

	c.mu.Lock()
	c.entries[provider] = cachedToken{
		token:     token,
		expiresAt: c.now().Add(expiresIn),
	}
	c.mu.Unlock()

	return token, nil
}

// Invalidate drops the cached token, forcing a fresh exchange next call.
func (c *TokenCache) Invalidate(provider string) {
	c.mu.Lock()
	delete(c.entries, provider)
	c.mu.Unlock()
}
