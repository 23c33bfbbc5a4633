package embed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"embedctl/metrics"
	"embedctl/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Listener receives every session transition. It is called outside of the
// controller lock and must not block for long.
type Listener func(event models.SessionEvent)

type Option func(*Controller)

func WithMountTarget(target MountTarget) Option {
	return func(c *Controller) { c.mount = target }
}

func WithListener(listener Listener) Option {
	return func(c *Controller) { c.listeners = append(c.listeners, listener) }
}

// WithUIConfig sets the initial dashboardUiConfig text.
func WithUIConfig(raw string) Option {
	return func(c *Controller) { c.rawUI = raw }
}

// Controller owns one embed session: the connection tuple, the state
// machine, the last error and the live dashboard handle.
type Controller struct {
	ctx context.Context
	id  string
	log zerolog.Logger

	fetcher   *TokenFetcher
	embedder  Embedder
	mount     MountTarget
	listeners []Listener

	mu         sync.Mutex
	conn       models.ConnectionConfig
	rawUI      string
	state      models.SessionState
	err        error
	handle     Handle
	theme      string
	generation uint64
}

// NewController builds an idle session. ctx bounds asynchronous activations.
func NewController(ctx context.Context, id string, logger zerolog.Logger,
	fetcher *TokenFetcher, embedder Embedder, opts ...Option) *Controller {
	c := &Controller{
		ctx:      ctx,
		id:       id,
		log:      logger.With().Str("embed_session", id).Logger(),
		fetcher:  fetcher,
		embedder: embedder,
		mount:    DefaultMountTarget,
		rawUI:    models.DefaultUIConfig,
		state:    models.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) ID() string { return c.id }

// SetConnection replaces the connection tuple. A different tuple drops the
// cached guest token.
func (c *Controller) SetConnection(cfg models.ConnectionConfig) {
	c.mu.Lock()
	changed := c.conn != cfg
	c.conn = cfg
	c.mu.Unlock()

	if changed {
		c.fetcher.Invalidate()
	}
}

func (c *Controller) SetUIConfig(raw string) {
	c.mu.Lock()
	c.rawUI = raw
	c.mu.Unlock()
}

func (c *Controller) Connection() models.ConnectionConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Controller) UIConfig() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rawUI
}

// Err is the error currently shown to the user, nil when there is none.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) Snapshot() models.SessionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() models.SessionSnapshot {
	s := models.SessionSnapshot{
		SessionID:  c.id,
		State:      c.state,
		IsEmbedded: c.state == models.StateActivating || c.state == models.StateEmbedded,
		HasHandle:  c.handle != nil,
		Connection: c.conn.Public(),
		Theme:      c.theme,
	}
	if c.err != nil {
		s.Error = c.err.Error()
	}
	return s
}

// Display validates the inputs, obtains a guest token and starts the
// activation. It returns once the session is activating; the handle arrives
// later. Errors are also kept on the session for the UI.
func (c *Controller) Display() error {
	c.mu.Lock()
	switch c.state {
	case models.StateValidating, models.StateAuthenticating, models.StateActivating:
		c.mu.Unlock()
		return ErrDisplayInProgress
	}
	c.generation++
	gen := c.generation
	previous := c.detach()
	c.state = models.StateValidating
	c.err = nil
	c.theme = ""
	cfg, raw := c.conn, c.rawUI
	c.mu.Unlock()

	metrics.Inc(metrics.Displays)
	c.unmount(previous)
	c.emit(models.EventDisplayRequested)

	uiConfig, err := Validate(cfg, raw)
	if err != nil {
		return c.fail(gen, models.EventValidationFailed, err)
	}

	c.fetcher.SetEnabled(true)
	if !c.transition(gen, models.StateAuthenticating) {
		return ErrSuperseded
	}

	token, err := c.fetcher.Token(cfg)
	if err != nil || token == "" {
		return c.fail(gen, models.EventTokenFailed, tokenError(err))
	}

	if !c.transition(gen, models.StateActivating) {
		return ErrSuperseded
	}
	c.emit(models.EventActivating)

	go c.activate(gen, EmbedOptions{
		FetchGuestToken:   c.guestTokenSource(gen, cfg, token),
		ID:                cfg.DashboardID,
		SupersetDomain:    cfg.Domain,
		MountPoint:        c.mount,
		DashboardUIConfig: uiConfig,
	})
	return nil
}

// Reset drops the session back to idle from any state. Pending fetches and
// activations started before it are ignored when they complete.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.generation++
	previous := c.detach()
	clean := c.state == models.StateIdle && c.err == nil && previous == nil
	c.state = models.StateIdle
	c.err = nil
	c.theme = ""
	c.mu.Unlock()

	c.fetcher.SetEnabled(false)
	if clean {
		return
	}

	c.unmount(previous)
	metrics.Inc(metrics.Resets)
	c.emit(models.EventReset)
}

// ApplyTheme forwards a preset theme to the live dashboard. Without a
// handle it does nothing.
func (c *Controller) ApplyTheme(name string) error {
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()

	if handle == nil {
		return ApplyTheme(c.log, name, nil)
	}

	if err := ApplyTheme(c.log, name, handle); err != nil {
		return errors.Wrap(err, "unable to set theme config")
	}

	c.mu.Lock()
	if c.handle == handle {
		c.theme = name
	}
	c.mu.Unlock()

	metrics.Inc(metrics.ThemesApplied)
	c.emit(models.EventThemeApplied)
	return nil
}

func (c *Controller) activate(gen uint64, opts EmbedOptions) {
	handle, err := c.embedder.Activate(c.ctx, opts)
	if err == nil && handle == nil {
		err = errors.New("embedder returned no dashboard")
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.log.Debug().Msg("activation finished after the session moved on")
		c.unmount(handle)
		return
	}

	if err != nil {
		c.state = models.StateIdle
		c.err = &Error{Kind: KindActivation, Err: err}
		c.mu.Unlock()

		c.log.Warn().Err(err).Msg("activation failed")
		metrics.IncFailure(string(KindActivation))
		c.emit(models.EventActivationFailed)
		return
	}

	c.handle = handle
	c.state = models.StateEmbedded
	c.mu.Unlock()

	metrics.Inc(metrics.Activations)
	metrics.Inc(metrics.EmbeddedSessions)
	c.log.Info().Str("dashboard_id", opts.ID).Msg("dashboard embedded")
	c.emit(models.EventEmbedded)
}

// guestTokenSource serves the token obtained by Display on the first call and
// fresh tokens afterwards, for as long as the session generation is current.
func (c *Controller) guestTokenSource(gen uint64, cfg models.ConnectionConfig,
	first models.GuestToken) func() (models.GuestToken, error) {
	var served int32
	return func() (models.GuestToken, error) {
		c.mu.Lock()
		current := gen == c.generation
		c.mu.Unlock()
		if !current {
			return "", ErrSuperseded
		}

		if atomic.CompareAndSwapInt32(&served, 0, 1) {
			return first, nil
		}
		return c.fetcher.Refetch(cfg)
	}
}

func (c *Controller) transition(gen uint64, state models.SessionState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.state = state
	return true
}

func (c *Controller) fail(gen uint64, kind models.EventKind, err error) error {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.state = models.StateIdle
	c.err = err
	c.mu.Unlock()

	c.log.Info().Str("kind", string(KindOf(err))).Err(err).Msg("display failed")
	metrics.IncFailure(string(KindOf(err)))
	c.emit(kind)
	return err
}

// detach takes the handle off the session. Callers hold c.mu.
func (c *Controller) detach() Handle {
	handle := c.handle
	c.handle = nil
	if handle != nil {
		metrics.Dec(metrics.EmbeddedSessions)
	}
	return handle
}

func (c *Controller) unmount(handle Handle) {
	if handle == nil {
		return
	}
	if err := handle.Unmount(); err != nil {
		c.log.Warn().Err(err).Msg("failed to unmount dashboard")
	}
}

func (c *Controller) emit(kind models.EventKind) {
	if len(c.listeners) == 0 {
		return
	}

	event := models.SessionEvent{
		SessionID: c.id,
		Kind:      kind,
		Snapshot:  c.Snapshot(),
		At:        time.Now().UTC(),
	}
	for _, listener := range c.listeners {
		listener(event)
	}
}
