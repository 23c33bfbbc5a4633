package models

import "time"

type SessionState string

const (
	StateIdle           SessionState = "idle"
	StateValidating     SessionState = "validating"
	StateAuthenticating SessionState = "authenticating"
	StateActivating     SessionState = "activating"
	StateEmbedded       SessionState = "embedded"
)

type EventKind string

const (
	EventDisplayRequested EventKind = "display_requested"
	EventValidationFailed EventKind = "validation_failed"
	EventTokenFailed      EventKind = "token_failed"
	EventActivating       EventKind = "activating"
	EventEmbedded         EventKind = "embedded"
	EventActivationFailed EventKind = "activation_failed"
	EventReset            EventKind = "reset"
	EventThemeApplied     EventKind = "theme_applied"
)

// SessionSnapshot is what the UI renders: state, error and whether the
// embedded handle is live. It never carries credentials or tokens.
type SessionSnapshot struct {
	SessionID  string           `json:"session_id"`
	State      SessionState     `json:"state"`
	IsEmbedded bool             `json:"is_embedded"`
	HasHandle  bool             `json:"has_handle"`
	Error      string           `json:"error,omitempty"`
	Connection PublicConnection `json:"connection"`
	Theme      string           `json:"theme,omitempty"`
}

type SessionEvent struct {
	SessionID string          `json:"session_id"`
	Kind      EventKind       `json:"kind"`
	Snapshot  SessionSnapshot `json:"snapshot"`
	At        time.Time       `json:"at"`
}
