package embed

import (
	"context"
	"sync"
	"testing"
	"time"

	"embedctl/models"

	"github.com/rs/zerolog"
)

type fakeExchange struct {
	mu    sync.Mutex
	calls []models.ConnectionConfig
	token models.GuestToken
	err   error
}

func (f *fakeExchange) FetchGuestToken(cfg models.ConnectionConfig) (models.GuestToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cfg)
	return f.token, f.err
}

func (f *fakeExchange) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeHandle struct {
	mu        sync.Mutex
	themes    []ThemeConfig
	unmounted int
}

func (h *fakeHandle) SetThemeConfig(cfg ThemeConfig) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.themes = append(h.themes, cfg)
	return nil
}

func (h *fakeHandle) Unmount() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unmounted++
	return nil
}

func (h *fakeHandle) themeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.themes)
}

func (h *fakeHandle) unmountCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unmounted
}

type fakeEmbedder struct {
	mu      sync.Mutex
	opts    []EmbedOptions
	handles []*fakeHandle
	err     error
	// release, when set, holds every activation until it is closed.
	release chan struct{}
	// hold parks each activation on its own gate, see releaseCall.
	hold     bool
	gates    []chan struct{}
	handleOf map[int]*fakeHandle
}

func (e *fakeEmbedder) Activate(ctx context.Context, opts EmbedOptions) (Handle, error) {
	e.mu.Lock()
	call := len(e.opts)
	e.opts = append(e.opts, opts)
	release, err := e.release, e.err
	if e.hold {
		release = make(chan struct{})
		e.gates = append(e.gates, release)
	}
	e.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	h := &fakeHandle{}
	e.mu.Lock()
	e.handles = append(e.handles, h)
	if e.handleOf == nil {
		e.handleOf = map[int]*fakeHandle{}
	}
	e.handleOf[call] = h
	e.mu.Unlock()
	return h, nil
}

// releaseCall lets the n-th held activation finish.
func (e *fakeEmbedder) releaseCall(n int) {
	e.mu.Lock()
	gate := e.gates[n]
	e.mu.Unlock()
	close(gate)
}

func (e *fakeEmbedder) handleFor(n int) *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handleOf[n]
}

func (e *fakeEmbedder) activations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.opts)
}

func (e *fakeEmbedder) lastHandle() *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.handles) == 0 {
		return nil
	}
	return e.handles[len(e.handles)-1]
}

func (e *fakeEmbedder) lastOptions() EmbedOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts[len(e.opts)-1]
}

func validConnection() models.ConnectionConfig {
	return models.ConnectionConfig{
		Domain:      "http://localhost:8088",
		Username:    "admin",
		Password:    "admin",
		DashboardID: "abc123",
	}
}

func newTestController(t *testing.T, exchange *fakeExchange, embedder *fakeEmbedder,
	opts ...Option) *Controller {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewController(ctx, "test", zerolog.Nop(), NewTokenFetcher(exchange), embedder, opts...)
}

func waitForState(t *testing.T, c *Controller, state models.SessionState) models.SessionSnapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		s := c.Snapshot()
		if s.State == state {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("session did not reach %q, last snapshot %+v", state, s)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitFor(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}
