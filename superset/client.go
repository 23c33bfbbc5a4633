package superset

import (
	"io/ioutil"
	"net/http"
	"strings"

	"embedctl/models"

	"github.com/lancer-kit/armory/api/httpx"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	LoginPath      = "/api/v1/security/login"
	GuestTokenPath = "/api/v1/security/guest_token"

	ProviderDB = "db"

	fieldAccessToken = "access_token"
	fieldToken       = "token"
)

var (
	ErrAuth       = errors.New("superset authentication failed")
	ErrGuestToken = errors.New("superset guest token request failed")
	// ErrEmptyToken also matches ErrGuestToken.
	ErrEmptyToken = errors.New("superset returned an empty guest token")
)

type exchangeError struct {
	kind  error
	cause error
}

func (e *exchangeError) Error() string {
	if e.cause == nil {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *exchangeError) Cause() error { return e.cause }

func (e *exchangeError) Unwrap() error { return e.cause }

func (e *exchangeError) Is(target error) bool {
	if target == e.kind {
		return true
	}
	return e.kind == ErrEmptyToken && target == ErrGuestToken
}

// BearerCredential is the access token obtained from the login endpoint.
type BearerCredential string

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Provider string `json:"provider"`
	Refresh  bool   `json:"refresh"`
}

// Client talks to the two Superset security endpoints. It keeps no state
// between calls.
type Client struct {
	http *httpx.XClient
	log  zerolog.Logger
}

func NewClient(logger zerolog.Logger) *Client {
	return &Client{
		http: httpx.NewXClient(),
		log:  logger.With().Str("sub_service", "superset-client").Logger(),
	}
}

func (c *Client) Authenticate(domain, username, password string) (BearerCredential, error) {
	body, err := c.post(endpoint(domain, LoginPath), LoginRequest{
		Username: username,
		Password: password,
		Provider: ProviderDB,
	}, nil)
	if err != nil {
		return "", &exchangeError{kind: ErrAuth, cause: err}
	}

	accessToken := gjson.GetBytes(body, fieldAccessToken)
	if !accessToken.Exists() || accessToken.String() == "" {
		return "", &exchangeError{kind: ErrAuth, cause: errors.New("response has no " + fieldAccessToken)}
	}

	return BearerCredential(accessToken.String()), nil
}

func (c *Client) RequestGuestToken(domain string, bearer BearerCredential,
	req models.GuestTokenRequest) (models.GuestToken, error) {
	body, err := c.post(endpoint(domain, GuestTokenPath), req, map[string]string{
		"Authorization": "Bearer " + string(bearer),
	})
	if err != nil {
		return "", &exchangeError{kind: ErrGuestToken, cause: err}
	}

	token := gjson.GetBytes(body, fieldToken)
	if !token.Exists() || token.String() == "" {
		return "", &exchangeError{kind: ErrEmptyToken}
	}

	return models.GuestToken(token.String()), nil
}

// FetchGuestToken logs in and then asks for a guest token for the dashboard.
// The guest token call is skipped when the login fails.
func (c *Client) FetchGuestToken(cfg models.ConnectionConfig) (models.GuestToken, error) {
	logger := c.log.With().
		Str("domain", cfg.Domain).
		Str("dashboard_id", cfg.DashboardID).
		Logger()

	bearer, err := c.Authenticate(cfg.Domain, cfg.Username, cfg.Password)
	if err != nil {
		logger.Warn().Err(err).Msg("login failed")
		return "", err
	}

	token, err := c.RequestGuestToken(cfg.Domain, bearer, models.NewGuestTokenRequest(cfg.DashboardID))
	if err != nil {
		logger.Warn().Err(err).Msg("guest token request failed")
		return "", err
	}

	logger.Debug().Msg("guest token issued")
	return token, nil
}

func (c *Client) post(url string, payload interface{}, headers map[string]string) ([]byte, error) {
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/json"

	resp, err := c.http.PostJSON(url, payload, headers)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read response body")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	if !gjson.ValidBytes(body) {
		return nil, errors.New("malformed response body")
	}

	return body, nil
}

func endpoint(domain, path string) string {
	return strings.TrimRight(domain, "/") + path
}
