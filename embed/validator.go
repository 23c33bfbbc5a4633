package embed

import (
	"encoding/json"
	"net/url"
	"strings"

	"embedctl/models"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pkg/errors"
)

var absoluteURL = validation.By(func(value interface{}) error {
	raw, _ := value.(string)
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	return nil
})

// Validate checks the connection tuple and the raw UI config, stopping at
// the first problem. The JSON check runs first.
func Validate(cfg models.ConnectionConfig, rawUIConfig string) (models.EmbedUIConfig, error) {
	uiConfig, err := ParseUIConfig(rawUIConfig)
	if err != nil {
		return nil, &Error{Kind: KindInvalidJSON, Err: err}
	}

	required := []struct {
		field string
		value string
	}{
		{FieldDashboardID, cfg.DashboardID},
		{FieldDomain, cfg.Domain},
		{FieldUsername, cfg.Username},
		{FieldPassword, cfg.Password},
	}
	for _, r := range required {
		if err := validation.Validate(strings.TrimSpace(r.value), validation.Required); err != nil {
			return nil, &Error{Kind: KindMissingField, Field: r.field, Err: err}
		}
	}

	// the domain is used verbatim for the exchange and the SDK, so it is
	// checked as is
	if err := validation.Validate(cfg.Domain, absoluteURL); err != nil {
		return nil, &Error{Kind: KindInvalidDomainURL, Field: FieldDomain, Err: err}
	}

	return uiConfig, nil
}

// ParseUIConfig decodes the dashboardUiConfig text. It must be a JSON object;
// a literal null is read as an empty config.
func ParseUIConfig(raw string) (models.EmbedUIConfig, error) {
	uiConfig := models.EmbedUIConfig{}
	if err := json.Unmarshal([]byte(raw), &uiConfig); err != nil {
		return nil, errors.Wrap(err, "unable to parse ui config")
	}
	if uiConfig == nil {
		uiConfig = models.EmbedUIConfig{}
	}
	return uiConfig, nil
}
