package embed

import (
	"context"

	"embedctl/models"
)

// MountTarget identifies where the consuming surface renders the dashboard.
// The core never interprets it.
type MountTarget string

const DefaultMountTarget MountTarget = "embedded-container"

// EmbedOptions mirrors the arguments of the SDK's embedDashboard call.
type EmbedOptions struct {
	FetchGuestToken   func() (models.GuestToken, error) `json:"-"`
	ID                string                            `json:"id"`
	SupersetDomain    string                            `json:"supersetDomain"`
	MountPoint        MountTarget                       `json:"mountPoint"`
	DashboardUIConfig models.EmbedUIConfig              `json:"dashboardUiConfig"`
}

// Embedder renders a dashboard into a mount target.
type Embedder interface {
	Activate(ctx context.Context, opts EmbedOptions) (Handle, error)
}

// Handle is a live embedded dashboard.
type Handle interface {
	SetThemeConfig(cfg ThemeConfig) error
	Unmount() error
}
