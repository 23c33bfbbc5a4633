package ws

import (
	"context"
	"runtime"
	"time"

	"embedctl/cache"
	"embedctl/config"
	"embedctl/embed"
	"embedctl/metrics"
	"embedctl/models"

	"github.com/lancer-kit/uwe/v2"
	"github.com/rs/zerolog"
)

// SessionInfo is what operators see about a connected page.
type SessionInfo struct {
	ClientInfo
	Snapshot models.SessionSnapshot `json:"snapshot"`
}

// Hub keeps the connected pages, their embed controllers and fans
// lifecycle events out to the journal and the publisher.
type Hub struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	cfg      config.EmbedCfg
	exchange embed.TokenExchange
	journal  cache.Storage

	publisher chan<- models.SessionEvent

	eventStream    EventStream
	sessionStorage SessionStorage
}

func NewHub(logger zerolog.Logger, cfg config.EmbedCfg, exchange embed.TokenExchange, journal cache.Storage) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		log:      logger.With().Str("sub_service", "ws-hub").Logger(),
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg,
		exchange: exchange,
		journal:  journal,

		sessionStorage: newSessionStorage(),
		eventStream:    make(EventStream, 256),
	}
}

// SetPublisher forwards every session event to out. Events are dropped when
// out is full.
func (h *Hub) SetPublisher(out chan<- models.SessionEvent) {
	h.publisher = out
}

type HubCommunicator struct {
	EventBus      EventStream
	Context       func() context.Context
	NewController ControllerFactory
	GetSessions   func() []SessionInfo
	GetSession    func(id string) (SessionInfo, bool)
	ResetSession  func(id string) (models.SessionSnapshot, bool)
	Journal       cache.Storage
	LogProvider   func() zerolog.Logger
}

func (h *Hub) Communicator() HubCommunicator {
	return HubCommunicator{
		EventBus:      h.eventStream,
		Context:       h.Context,
		NewController: h.newController,
		GetSessions:   h.listSessions,
		GetSession:    h.getSession,
		ResetSession:  h.resetSession,
		Journal:       h.journal,
		LogProvider:   func() zerolog.Logger { return h.log },
	}
}

func (h *Hub) EventBus() EventStream { return h.eventStream }

func (h *Hub) Context() context.Context { return h.ctx }

func (h *Hub) newController(ctx context.Context, id string, embedder embed.Embedder,
	opts ...embed.Option) *embed.Controller {
	opts = append([]embed.Option{
		embed.WithMountTarget(embed.MountTarget(h.cfg.MountTarget)),
		embed.WithUIConfig(h.cfg.UIConfig),
	}, opts...)

	controller := embed.NewController(ctx, id, h.log, embed.NewTokenFetcher(h.exchange), embedder, opts...)
	if h.cfg.Domain != "" {
		controller.SetConnection(models.ConnectionConfig{Domain: h.cfg.Domain})
	}
	return controller
}

func (h *Hub) listSessions() []SessionInfo {
	list := make([]SessionInfo, 0, h.sessionStorage.GetSessionsCount())
	h.sessionStorage.ForEach(func(_ string, session *Session) {
		list = append(list, SessionInfo{ClientInfo: session.info, Snapshot: session.controller.Snapshot()})
	})
	return list
}

func (h *Hub) getSession(id string) (SessionInfo, bool) {
	session := h.sessionStorage.GetSession(id)
	if session == nil {
		return SessionInfo{}, false
	}
	return SessionInfo{ClientInfo: session.info, Snapshot: session.controller.Snapshot()}, true
}

func (h *Hub) resetSession(id string) (models.SessionSnapshot, bool) {
	session := h.sessionStorage.GetSession(id)
	if session == nil {
		return models.SessionSnapshot{}, false
	}
	session.controller.Reset()
	return session.controller.Snapshot(), true
}

func (h *Hub) addSession(client *Session) {
	h.sessionStorage.AddSession(client.info.ID, client)

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	client.Start()
	metrics.Inc(metrics.ActiveSessions)
	h.log.Debug().Str("session_id", client.info.ID).Msg("session registered")
}

func (h *Hub) rmSession(sessionID string) {
	client := h.sessionStorage.RMSession(sessionID)
	if client == nil {
		// both pumps report the same disconnect
		h.log.Trace().Str("session_id", sessionID).Msg("session already removed")
		return
	}

	h.closeSession(sessionID, client)
}

func (h *Hub) closeSession(sessionID string, client *Session) {
	if err := client.Close(); err != nil {
		h.log.Debug().Err(err).Str("session_id", sessionID).
			Msg("failed to close client session")
	}

	metrics.Dec(metrics.ActiveSessions)
}

func (h Hub) GetSessionsCount() int64 {
	return h.sessionStorage.GetSessionsCount()
}

func (h *Hub) Init() error {
	return h.journal.CheckConn()
}

func (h *Hub) Run(wCtx uwe.Context) error {
	return h.serve(wCtx.Done())
}

func (h *Hub) serve(done <-chan struct{}) error {
	gcTicker := time.NewTicker(2 * time.Hour)

	for {
		select {
		case <-gcTicker.C:
			h.log.Info().Msg("force garbage collection running...")
			runtime.GC()

		case event := <-h.eventStream:
			switch event.Kind {
			case EKNewSession:
				h.addSession(event.Session)

			case EKSessionEvent:
				h.processSessionEvent(*event.SessionEvent)

			case EKUnregister:
				h.rmSession(event.SessionID)
			}

		case <-done:
			gcTicker.Stop()

			h.cancel()
			h.closeSockets()

			if err := h.journal.CloseConnection(); err != nil {
				h.log.Error().Err(err).Msg("failed to close journal")
			}
			return nil
		}
	}
}

func (h *Hub) closeSockets() {
	h.sessionStorage.RMSessions(h.closeSession)
}

func (h *Hub) processSessionEvent(event models.SessionEvent) {
	if err := h.journal.Append(event); err != nil {
		h.log.Error().Err(err).Str("session_id", event.SessionID).
			Msg("failed to journal session event")
	}

	if h.publisher == nil {
		return
	}

	select {
	case h.publisher <- event:
	default:
		metrics.Inc(metrics.DroppedEvents)
		h.log.Warn().Str("kind", string(event.Kind)).Msg("publisher is busy, event dropped")
	}
}
