package embed

import (
	"embedctl/superset"

	"github.com/pkg/errors"
)

type ErrorKind string

const (
	KindInvalidJSON      ErrorKind = "invalid_json"
	KindMissingField     ErrorKind = "missing_field"
	KindInvalidDomainURL ErrorKind = "invalid_domain_url"
	KindAuth             ErrorKind = "auth_error"
	KindToken            ErrorKind = "token_error"
	KindEmptyToken       ErrorKind = "empty_token"
	KindActivation       ErrorKind = "activation_error"
)

const (
	FieldDashboardID = "dashboard_id"
	FieldDomain      = "domain"
	FieldUsername    = "username"
	FieldPassword    = "password"
)

var (
	ErrDisplayInProgress = errors.New("display already in progress")
	ErrFetchDisabled     = errors.New("guest token fetch is disabled")
	// ErrSuperseded is returned by a Display whose result was discarded by a
	// Reset or a newer Display.
	ErrSuperseded = errors.New("display superseded")
)

var fieldMessages = map[string]string{
	FieldDashboardID: "Embedded ID is required",
	FieldDomain:      "Domain is required",
	FieldUsername:    "Username is required",
	FieldPassword:    "Password is required",
}

// Error is a failure the session reports to the user. Error() is the text
// shown in the form.
type Error struct {
	Kind  ErrorKind
	Field string
	Err   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidJSON:
		return "Invalid JSON configuration"
	case KindMissingField:
		return fieldMessages[e.Field]
	case KindInvalidDomainURL:
		return "Domain must be an absolute URL, e.g. http://localhost:8088"
	case KindAuth, KindToken, KindEmptyToken:
		return "Failed to get guest token: " + e.cause()
	case KindActivation:
		return "Failed to activate embedded dashboard: " + e.cause()
	}
	return e.cause()
}

func (e *Error) Cause() error { return e.Err }

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) cause() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// KindOf returns the kind of a session error, or "" for other errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func tokenError(err error) *Error {
	switch {
	case err == nil:
		return &Error{Kind: KindEmptyToken}
	case errors.Is(err, superset.ErrAuth):
		return &Error{Kind: KindAuth, Err: err}
	case errors.Is(err, superset.ErrEmptyToken):
		return &Error{Kind: KindEmptyToken, Err: err}
	default:
		return &Error{Kind: KindToken, Err: err}
	}
}
