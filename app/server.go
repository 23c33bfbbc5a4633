package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"embedctl/app/ws"
	"embedctl/config"
	"embedctl/embed"
	"embedctl/log"
	"embedctl/metrics"
	"embedctl/models"
	"embedctl/web"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lancer-kit/armory/api/render"
	"github.com/lancer-kit/noble"
	"github.com/lancer-kit/uwe/v2/presets/api"
	"github.com/rs/zerolog"
)

const (
	APIServiceHeader = "X-Api-Service"
	APIKeyHeader     = "X-Api-Key"

	paramSessionID   = "id"
	queryDashboardID = "dashboard_id"
)

func GetServer(logger zerolog.Logger, cfg config.Cfg, ctx context.Context, hubCom ws.HubCommunicator) *api.Server {
	return api.NewServer(cfg.API, getRouter(ctx, logger, cfg, hubCom))
}

func getRouter(ctx context.Context, logger zerolog.Logger, cfg config.Cfg, hubCom ws.HubCommunicator) http.Handler {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(log.LoggerMiddleware(&logger))

	if cfg.API.EnableCORS {
		corsHandler := cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type",
				APIServiceHeader, APIKeyHeader},
			ExposedHeaders:   []string{"Link", "Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // Maximum value not ignored by any of major browsers
		})
		r.Use(corsHandler.Handler)
	}

	h := handler{
		ctx:         ctx,
		log:         logger,
		hubCom:      hubCom,
		enableAuth:  cfg.EnableAuth,
		serviceKeys: cfg.AuthorizedServices,
	}

	r.Route("/_embed", func(r chi.Router) {
		if cfg.EnableUI {
			r.Get("/page", h.renderWebPage)
		}

		r.Get("/info", func(w http.ResponseWriter, r *http.Request) { render.Success(w, config.App) })
		r.Get("/themes", h.handleThemes)
		r.Get("/guest-token-request", h.handleGuestTokenRequest)
		r.Get("/subscribe", h.handleNewWS)

		r.Route("/sessions", func(r chi.Router) {
			r.Use(h.operatorsOnly)

			r.Get("/", h.handleSessions)
			r.Get("/{id}", h.handleSession)
			r.Get("/{id}/events", h.handleSessionEvents)
			r.Delete("/{id}/events", h.handleForgetSession)
			r.Post("/{id}/reset", h.handleResetSession)
		})
	})
	r.Mount("/", metrics.GetMonitoringMux(cfg.Monitoring))
	return r
}

type handler struct {
	ctx    context.Context
	log    zerolog.Logger
	hubCom ws.HubCommunicator

	enableAuth  bool
	serviceKeys map[string]noble.Secret
}

func (h handler) operatorsOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.enableAuth {
			service := r.Header.Get(APIServiceHeader)
			securityKey := r.Header.Get(APIKeyHeader)

			key, ok := h.serviceKeys[service]
			if !ok || securityKey == "" || securityKey != key.Get() {
				render.Forbidden(w, "auth data invalid")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (h handler) renderWebPage(w http.ResponseWriter, _ *http.Request) {
	rawPage, err := web.GetIndexPage()
	if err != nil {
		h.log.Error().Err(err).Msg("unable to read index page")
		render.ServerError(w)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(rawPage)
	if err != nil {
		h.log.Error().Err(err).Msg("unable to write index page")
		return
	}
}

func (h handler) handleThemes(w http.ResponseWriter, _ *http.Request) {
	themes := make([]embed.Theme, 0)
	for _, name := range embed.Themes() {
		themes = append(themes, embed.Theme{Name: name, Config: embed.LookupTheme(name)})
	}
	render.Success(w, themes)
}

// handleGuestTokenRequest previews the payload sent to the guest token
// endpoint for a dashboard.
func (h handler) handleGuestTokenRequest(w http.ResponseWriter, r *http.Request) {
	dashboardID := strings.TrimSpace(r.URL.Query().Get(queryDashboardID))
	if dashboardID == "" {
		render.BadRequest(w, queryDashboardID+" is required")
		return
	}

	render.Success(w, models.NewGuestTokenRequest(dashboardID))
}

func (h handler) handleSessions(w http.ResponseWriter, _ *http.Request) {
	render.Success(w, h.hubCom.GetSessions())
}

func (h handler) handleSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.hubCom.GetSession(chi.URLParam(r, paramSessionID))
	if !ok {
		render.BadRequest(w, "unknown session")
		return
	}

	render.Success(w, session)
}

// handleSessionEvents serves the journal, which outlives the connection.
func (h handler) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, paramSessionID)

	events, err := h.hubCom.Journal.Events(sessionID)
	if err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("unable to read session journal")
		render.ServerError(w)
		return
	}

	render.Success(w, events)
}

func (h handler) handleForgetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, paramSessionID)

	if err := h.hubCom.Journal.Forget(sessionID); err != nil {
		h.log.Error().Err(err).Str("session_id", sessionID).Msg("unable to drop session journal")
		render.ServerError(w)
		return
	}

	render.Success(w, map[string]string{"session_id": sessionID})
}

func (h handler) handleResetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, paramSessionID)

	snapshot, ok := h.hubCom.ResetSession(sessionID)
	if !ok {
		render.BadRequest(w, "unknown session")
		return
	}

	h.log.Info().Str("session_id", sessionID).Msg("session reset by operator")
	render.Success(w, snapshot)
}

func (h handler) handleNewWS(w http.ResponseWriter, r *http.Request) {
	info := ws.ClientInfo{
		ID:          uuid.New().String(),
		IP:          r.RemoteAddr,
		UserAgent:   r.UserAgent(),
		ConnectedAt: time.Now().UTC(),
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  10 * 1024,
		WriteBufferSize: 10 * 1024,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("unable to upgrade http protocol")
		return
	}

	client := ws.NewSession(h.ctx, h.hubCom.LogProvider(), h.hubCom.EventBus, conn, info, h.hubCom.NewController)

	h.log.Debug().Str("session_id", info.ID).Msg("Open new client connection")
	h.hubCom.EventBus <- &ws.Event{Kind: ws.EKNewSession, SessionID: info.ID, Session: client}
}
