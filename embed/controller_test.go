package embed

import (
	"strings"
	"sync"
	"testing"

	"embedctl/models"
	"embedctl/superset"

	"github.com/pkg/errors"
)

func TestDisplayEmbedsDashboard(t *testing.T) {
	exchange := &fakeExchange{token: "guest-1"}
	embedder := &fakeEmbedder{}
	c := newTestController(t, exchange, embedder, WithMountTarget("mount-1"))
	c.SetConnection(validConnection())

	if err := c.Display(); err != nil {
		t.Fatalf("Display failed: %v", err)
	}

	s := waitForState(t, c, models.StateEmbedded)
	if !s.IsEmbedded || !s.HasHandle || s.Error != "" {
		t.Errorf("unexpected snapshot %+v", s)
	}

	opts := embedder.lastOptions()
	if opts.ID != "abc123" || opts.SupersetDomain != "http://localhost:8088" || opts.MountPoint != "mount-1" {
		t.Errorf("unexpected embed options %+v", opts)
	}
	if _, ok := opts.DashboardUIConfig["filters"]; !ok {
		t.Errorf("ui config not passed through: %#v", opts.DashboardUIConfig)
	}

	token, err := opts.FetchGuestToken()
	if err != nil || token != "guest-1" {
		t.Errorf("FetchGuestToken() = %q, %v", token, err)
	}
	if exchange.callCount() != 1 {
		t.Errorf("first token callback must reuse the display token, got %d exchanges", exchange.callCount())
	}
	_, _ = opts.FetchGuestToken()
	if exchange.callCount() != 2 {
		t.Errorf("later token callbacks must refresh, got %d exchanges", exchange.callCount())
	}
}

func TestDisplayIsEmbeddedBeforeHandle(t *testing.T) {
	embedder := &fakeEmbedder{release: make(chan struct{})}
	c := newTestController(t, &fakeExchange{token: "guest-1"}, embedder)
	c.SetConnection(validConnection())

	if err := c.Display(); err != nil {
		t.Fatalf("Display failed: %v", err)
	}

	s := c.Snapshot()
	if s.State != models.StateActivating || !s.IsEmbedded || s.HasHandle {
		t.Fatalf("expected a pending embedded state, got %+v", s)
	}
	if err := c.ApplyTheme("dark"); err != nil {
		t.Fatalf("theme during activation must be a no-op, got %v", err)
	}

	if err := c.Display(); err != ErrDisplayInProgress {
		t.Errorf("expected ErrDisplayInProgress, got %v", err)
	}

	close(embedder.release)
	waitForState(t, c, models.StateEmbedded)
	if h := embedder.lastHandle(); h.themeCount() != 0 {
		t.Error("theme issued before the handle existed must not be replayed")
	}
}

func TestDisplayValidationFailuresSkipNetwork(t *testing.T) {
	cases := map[string]struct {
		cfg  models.ConnectionConfig
		raw  string
		kind ErrorKind
	}{
		"missing password": {models.ConnectionConfig{Domain: "http://x", Username: "u", DashboardID: "d"}, "{}", KindMissingField},
		"no scheme":        {models.ConnectionConfig{Domain: "localhost:8088", Username: "u", Password: "p", DashboardID: "d"}, "{}", KindInvalidDomainURL},
		"bad json":         {models.ConnectionConfig{}, "{nope", KindInvalidJSON},
		"padded domain":    {models.ConnectionConfig{Domain: " http://localhost:8088 ", Username: "u", Password: "p", DashboardID: "d"}, "{}", KindInvalidDomainURL},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			exchange := &fakeExchange{token: "guest-1"}
			embedder := &fakeEmbedder{}
			c := newTestController(t, exchange, embedder, WithUIConfig(tc.raw))
			c.SetConnection(tc.cfg)

			err := c.Display()
			if KindOf(err) != tc.kind {
				t.Fatalf("expected %q, got %v", tc.kind, err)
			}

			s := c.Snapshot()
			if s.IsEmbedded || s.State != models.StateIdle || s.Error == "" {
				t.Errorf("unexpected snapshot %+v", s)
			}
			if exchange.callCount() != 0 || embedder.activations() != 0 {
				t.Error("validation failures must not reach the network or the embedder")
			}
		})
	}
}

func TestDisplayTokenFailures(t *testing.T) {
	cases := map[string]struct {
		exchange *fakeExchange
		kind     ErrorKind
	}{
		"login rejected": {&fakeExchange{err: errors.Wrap(superset.ErrAuth, "unexpected status 401")}, KindAuth},
		"token missing":  {&fakeExchange{err: superset.ErrEmptyToken}, KindEmptyToken},
		"token rejected": {&fakeExchange{err: superset.ErrGuestToken}, KindToken},
		"empty token":    {&fakeExchange{}, KindEmptyToken},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			embedder := &fakeEmbedder{}
			c := newTestController(t, tc.exchange, embedder)
			c.SetConnection(validConnection())

			err := c.Display()
			if KindOf(err) != tc.kind {
				t.Fatalf("expected %q, got %v", tc.kind, err)
			}

			s := c.Snapshot()
			if s.IsEmbedded || s.State != models.StateIdle {
				t.Errorf("unexpected snapshot %+v", s)
			}
			if !strings.HasPrefix(s.Error, "Failed to get guest token") {
				t.Errorf("unexpected error message %q", s.Error)
			}
			if embedder.activations() != 0 {
				t.Error("the embedder must not run without a token")
			}
			if !c.fetcher.Enabled() {
				t.Error("the fetch gate stays enabled after a token failure")
			}
		})
	}
}

func TestDisplayReusesCachedToken(t *testing.T) {
	exchange := &fakeExchange{token: "guest-1"}
	c := newTestController(t, exchange, &fakeEmbedder{})
	c.SetConnection(validConnection())

	if err := c.Display(); err != nil {
		t.Fatalf("Display failed: %v", err)
	}
	waitForState(t, c, models.StateEmbedded)

	if err := c.Display(); err != nil {
		t.Fatalf("second Display failed: %v", err)
	}
	waitForState(t, c, models.StateEmbedded)
	if exchange.callCount() != 1 {
		t.Fatalf("identical tuple must hit the cache, got %d exchanges", exchange.callCount())
	}

	changed := validConnection()
	changed.Password = "rotated"
	c.SetConnection(changed)
	if err := c.Display(); err != nil {
		t.Fatalf("third Display failed: %v", err)
	}
	waitForState(t, c, models.StateEmbedded)
	if exchange.callCount() != 2 {
		t.Fatalf("changed password must force a new exchange, got %d", exchange.callCount())
	}
}

func TestRedisplayUnmountsPreviousDashboard(t *testing.T) {
	embedder := &fakeEmbedder{}
	c := newTestController(t, &fakeExchange{token: "guest-1"}, embedder)
	c.SetConnection(validConnection())

	_ = c.Display()
	waitForState(t, c, models.StateEmbedded)
	first := embedder.lastHandle()

	_ = c.Display()
	waitForState(t, c, models.StateEmbedded)
	if first.unmountCount() != 1 {
		t.Errorf("previous dashboard must be unmounted once, got %d", first.unmountCount())
	}
}

func TestResetFromEmbedded(t *testing.T) {
	embedder := &fakeEmbedder{}
	c := newTestController(t, &fakeExchange{token: "guest-1"}, embedder)
	c.SetConnection(validConnection())

	_ = c.Display()
	waitForState(t, c, models.StateEmbedded)
	handle := embedder.lastHandle()

	c.Reset()
	s := c.Snapshot()
	if s.State != models.StateIdle || s.IsEmbedded || s.HasHandle || s.Error != "" {
		t.Fatalf("unexpected snapshot after reset %+v", s)
	}
	if handle.unmountCount() != 1 {
		t.Error("reset must unmount the dashboard")
	}
	if c.fetcher.Enabled() {
		t.Error("reset must close the fetch gate")
	}

	if err := c.ApplyTheme("dark"); err != nil {
		t.Fatalf("theme after reset must be a no-op, got %v", err)
	}
	if handle.themeCount() != 0 {
		t.Error("theme must not reach a discarded handle")
	}

	c.SetConnection(models.ConnectionConfig{})
	if err := c.Display(); KindOf(err) != KindMissingField {
		t.Errorf("display after reset must validate from scratch, got %v", err)
	}
}

func TestResetIsIdempotent(t *testing.T) {
	var mu sync.Mutex
	var events []models.EventKind
	c := newTestController(t, &fakeExchange{}, &fakeEmbedder{}, WithListener(func(e models.SessionEvent) {
		mu.Lock()
		events = append(events, e.Kind)
		mu.Unlock()
	}))

	c.Reset()
	c.Reset()

	if s := c.Snapshot(); s.State != models.StateIdle || s.Error != "" {
		t.Errorf("unexpected snapshot %+v", s)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != 0 {
		t.Errorf("reset from a clean idle session must be silent, got %v", events)
	}
}

func TestResetClearsError(t *testing.T) {
	c := newTestController(t, &fakeExchange{}, &fakeEmbedder{})
	_ = c.Display()
	if c.Err() == nil {
		t.Fatal("expected an error after displaying an empty form")
	}

	c.Reset()
	if c.Err() != nil || c.Snapshot().Error != "" {
		t.Error("reset must clear the error")
	}
}

func TestResetDuringActivationDiscardsLateHandle(t *testing.T) {
	embedder := &fakeEmbedder{release: make(chan struct{})}
	c := newTestController(t, &fakeExchange{token: "guest-1"}, embedder)
	c.SetConnection(validConnection())

	_ = c.Display()
	c.Reset()
	close(embedder.release)

	unmounted := waitFor(t, func() bool {
		h := embedder.lastHandle()
		return h != nil && h.unmountCount() == 1
	})
	if !unmounted {
		t.Fatal("late handle must be unmounted")
	}
	if s := c.Snapshot(); s.State != models.StateIdle || s.HasHandle {
		t.Errorf("late activation must not resurrect the session: %+v", s)
	}
}

func TestLateActivationUnmountsOnlyItsOwnDashboard(t *testing.T) {
	embedder := &fakeEmbedder{hold: true}
	c := newTestController(t, &fakeExchange{token: "guest-1"}, embedder)
	c.SetConnection(validConnection())

	if err := c.Display(); err != nil {
		t.Fatalf("first Display: %v", err)
	}
	if !waitFor(t, func() bool { return embedder.activations() == 1 }) {
		t.Fatal("first activation did not start")
	}
	c.Reset()

	if err := c.Display(); err != nil {
		t.Fatalf("second Display: %v", err)
	}
	if !waitFor(t, func() bool { return embedder.activations() == 2 }) {
		t.Fatal("second activation did not start")
	}

	// the newer dashboard mounts first, the stale one resolves afterwards
	embedder.releaseCall(1)
	waitForState(t, c, models.StateEmbedded)
	current := embedder.handleFor(1)

	embedder.releaseCall(0)
	unmounted := waitFor(t, func() bool {
		stale := embedder.handleFor(0)
		return stale != nil && stale.unmountCount() == 1
	})
	if !unmounted {
		t.Fatal("stale handle must be unmounted")
	}

	if current.unmountCount() != 0 {
		t.Errorf("current dashboard was unmounted %d times", current.unmountCount())
	}
	if s := c.Snapshot(); s.State != models.StateEmbedded || !s.HasHandle {
		t.Errorf("session must stay embedded with the newer dashboard: %+v", s)
	}
	if err := c.ApplyTheme("dark"); err != nil || current.themeCount() != 1 {
		t.Errorf("theme must reach the current dashboard: %v, %d", err, current.themeCount())
	}
}

func TestActivationFailureRollsBack(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("mount point not found")}
	c := newTestController(t, &fakeExchange{token: "guest-1"}, embedder)
	c.SetConnection(validConnection())

	if err := c.Display(); err != nil {
		t.Fatalf("Display failed: %v", err)
	}

	s := waitForState(t, c, models.StateIdle)
	if s.IsEmbedded || s.Error == "" {
		t.Errorf("unexpected snapshot %+v", s)
	}
	if KindOf(c.Err()) != KindActivation {
		t.Errorf("expected activation error, got %v", c.Err())
	}
}

func TestNewDisplayReplacesError(t *testing.T) {
	c := newTestController(t, &fakeExchange{token: "guest-1"}, &fakeEmbedder{})
	_ = c.Display()
	first := c.Snapshot().Error

	cfg := validConnection()
	cfg.Domain = "localhost:8088"
	c.SetConnection(cfg)
	_ = c.Display()
	second := c.Snapshot().Error

	if first == "" || second == "" || first == second {
		t.Errorf("each display must replace the error wholesale: %q then %q", first, second)
	}
}

func TestApplyThemeOnLiveDashboard(t *testing.T) {
	var mu sync.Mutex
	var kinds []models.EventKind
	embedder := &fakeEmbedder{}
	c := newTestController(t, &fakeExchange{token: "guest-1"}, embedder, WithListener(func(e models.SessionEvent) {
		mu.Lock()
		kinds = append(kinds, e.Kind)
		mu.Unlock()
	}))
	c.SetConnection(validConnection())
	_ = c.Display()
	waitForState(t, c, models.StateEmbedded)

	if err := c.ApplyTheme("dark"); err != nil {
		t.Fatalf("ApplyTheme failed: %v", err)
	}
	if h := embedder.lastHandle(); h.themeCount() != 1 {
		t.Errorf("expected one theme call, got %d", h.themeCount())
	}
	if c.Snapshot().Theme != "dark" {
		t.Errorf("snapshot must report the applied theme")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []models.EventKind{models.EventDisplayRequested, models.EventActivating,
		models.EventEmbedded, models.EventThemeApplied}
	if len(kinds) != len(want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d: expected %q, got %q", i, want[i], kinds[i])
		}
	}
}
