package models

// ConnectionConfig is the tuple a user enters to reach a Superset instance.
// It is comparable, so it can be used directly as a cache key.
type ConnectionConfig struct {
	Domain      string `json:"domain"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DashboardID string `json:"dashboard_id"`
}

// Public returns a copy that is safe to log or render.
func (c ConnectionConfig) Public() PublicConnection {
	return PublicConnection{
		Domain:      c.Domain,
		Username:    c.Username,
		DashboardID: c.DashboardID,
		HasPassword: c.Password != "",
	}
}

type PublicConnection struct {
	Domain      string `json:"domain"`
	Username    string `json:"username"`
	DashboardID string `json:"dashboard_id"`
	HasPassword bool   `json:"has_password"`
}

// EmbedUIConfig is the free-form dashboardUiConfig passed to the embedding SDK,
// e.g. hideTitle, hideTab, filters.visible, urlParams.
type EmbedUIConfig map[string]interface{}

// DefaultUIConfig is the text the form starts with.
const DefaultUIConfig = `{
  "filters": {
    "visible": true,
    "expanded": true
  },
  "urlParams": {}
}`
