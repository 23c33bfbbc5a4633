package ws

import "embedctl/models"

type EventKind int

const (
	EKNewSession EventKind = iota + 1
	EKUnregister
	EKSessionEvent
)

type Event struct {
	Kind         EventKind
	SessionID    string
	Session      *Session
	SessionEvent *models.SessionEvent
}

type EventStream chan *Event

// Websocket channel and event names shared with the browser page.
const (
	ChannelEmbed  = "embed"
	ChannelStatus = "ws_status"

	// client -> server
	EvHandshake        = "handshake"
	EvSetConnection    = "set_connection"
	EvSetUIConfig      = "set_ui_config"
	EvDisplay          = "display"
	EvReset            = "reset"
	EvApplyTheme       = "apply_theme"
	EvActivated        = "activated"
	EvActivationFailed = "activation_failed"
	EvFetchGuestToken  = "fetch_guest_token"
	EvPong             = "pong"

	// server -> client
	EvState      = "state"
	EvActivate   = "activate"
	EvSetTheme   = "set_theme"
	EvUnmount    = "unmount"
	EvGuestToken = "guest_token"
	EvError      = "error"
	EvPing       = "ping"
)

const (
	FieldDomain      = "domain"
	FieldUsername    = "username"
	FieldPassword    = "password"
	FieldDashboardID = "dashboard_id"
	FieldUIConfig    = "ui_config"
	FieldTheme       = "theme"
	FieldError       = "error"
	// FieldCallID tells overlapping token requests of one dashboard apart.
	FieldCallID = "call_id"
)
