package embed

import (
	"sync"

	"embedctl/metrics"
	"embedctl/models"
	"embedctl/superset"
)

// TokenExchange turns a connection tuple into a guest token.
type TokenExchange interface {
	FetchGuestToken(cfg models.ConnectionConfig) (models.GuestToken, error)
}

// TokenFetcher memoizes the last guest token for one connection tuple.
// Fetching is gated: nothing goes over the network until a display attempt
// enables it.
type TokenFetcher struct {
	mu       sync.Mutex
	exchange TokenExchange

	enabled bool
	key     models.ConnectionConfig
	token   models.GuestToken
	cached  bool
}

func NewTokenFetcher(exchange TokenExchange) *TokenFetcher {
	return &TokenFetcher{exchange: exchange}
}

func (f *TokenFetcher) SetEnabled(enabled bool) {
	f.mu.Lock()
	f.enabled = enabled
	f.mu.Unlock()
}

func (f *TokenFetcher) Enabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enabled
}

// Peek returns the cached token for cfg without touching the network.
func (f *TokenFetcher) Peek(cfg models.ConnectionConfig) (models.GuestToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enabled || !f.cached || f.key != cfg {
		return "", false
	}
	return f.token, true
}

// Token returns the cached token for cfg or fetches a new one.
func (f *TokenFetcher) Token(cfg models.ConnectionConfig) (models.GuestToken, error) {
	if !f.Enabled() {
		return "", ErrFetchDisabled
	}
	if token, ok := f.Peek(cfg); ok {
		metrics.Inc(metrics.TokenCacheHits)
		return token, nil
	}
	return f.Refetch(cfg)
}

// Refetch always performs the exchange and stores a successful result.
func (f *TokenFetcher) Refetch(cfg models.ConnectionConfig) (models.GuestToken, error) {
	metrics.Inc(metrics.TokenFetches)

	token, err := f.exchange.FetchGuestToken(cfg)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", superset.ErrEmptyToken
	}

	f.mu.Lock()
	f.key, f.token, f.cached = cfg, token, true
	f.mu.Unlock()
	return token, nil
}

// Invalidate drops the cached token.
func (f *TokenFetcher) Invalidate() {
	f.mu.Lock()
	f.key, f.token, f.cached = models.ConnectionConfig{}, "", false
	f.mu.Unlock()
}
