package embed

import (
	"testing"

	"embedctl/superset"

	"github.com/pkg/errors"
)

func TestTokenFetcherGate(t *testing.T) {
	exchange := &fakeExchange{token: "guest-1"}
	f := NewTokenFetcher(exchange)

	if _, err := f.Token(validConnection()); err != ErrFetchDisabled {
		t.Fatalf("expected ErrFetchDisabled, got %v", err)
	}
	if exchange.callCount() != 0 {
		t.Fatal("a disabled fetcher must not call the exchange")
	}

	f.SetEnabled(true)
	token, err := f.Token(validConnection())
	if err != nil || token != "guest-1" {
		t.Fatalf("Token() = %q, %v", token, err)
	}

	f.SetEnabled(false)
	if _, ok := f.Peek(validConnection()); ok {
		t.Error("Peek must honor the gate")
	}
}

func TestTokenFetcherCachesByTuple(t *testing.T) {
	exchange := &fakeExchange{token: "guest-1"}
	f := NewTokenFetcher(exchange)
	f.SetEnabled(true)

	cfg := validConnection()
	for i := 0; i < 3; i++ {
		if _, err := f.Token(cfg); err != nil {
			t.Fatalf("Token() failed: %v", err)
		}
	}
	if exchange.callCount() != 1 {
		t.Fatalf("expected 1 exchange, got %d", exchange.callCount())
	}

	changed := cfg
	changed.Password = "other"
	if _, ok := f.Peek(changed); ok {
		t.Error("a different tuple must miss the cache")
	}
	if _, err := f.Token(changed); err != nil {
		t.Fatalf("Token() failed: %v", err)
	}
	if exchange.callCount() != 2 {
		t.Fatalf("expected a fresh exchange for a changed tuple, got %d calls", exchange.callCount())
	}
}

func TestTokenFetcherRefetchBypassesCache(t *testing.T) {
	exchange := &fakeExchange{token: "guest-1"}
	f := NewTokenFetcher(exchange)
	f.SetEnabled(true)

	cfg := validConnection()
	_, _ = f.Token(cfg)
	exchange.token = "guest-2"

	token, err := f.Refetch(cfg)
	if err != nil || token != "guest-2" {
		t.Fatalf("Refetch() = %q, %v", token, err)
	}
	if cached, _ := f.Peek(cfg); cached != "guest-2" {
		t.Errorf("refetch must refresh the cache, got %q", cached)
	}
}

func TestTokenFetcherErrors(t *testing.T) {
	exchange := &fakeExchange{err: superset.ErrAuth}
	f := NewTokenFetcher(exchange)
	f.SetEnabled(true)

	if _, err := f.Token(validConnection()); !errors.Is(err, superset.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if _, ok := f.Peek(validConnection()); ok {
		t.Error("failed fetches must not be cached")
	}

	exchange.err = nil
	if _, err := f.Token(validConnection()); !errors.Is(err, superset.ErrEmptyToken) {
		t.Fatalf("expected ErrEmptyToken for an empty token, got %v", err)
	}
}

func TestTokenFetcherInvalidate(t *testing.T) {
	exchange := &fakeExchange{token: "guest-1"}
	f := NewTokenFetcher(exchange)
	f.SetEnabled(true)

	_, _ = f.Token(validConnection())
	f.Invalidate()
	if _, ok := f.Peek(validConnection()); ok {
		t.Error("Invalidate must drop the cached token")
	}
}
