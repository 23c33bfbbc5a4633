package config

import (
	"embedctl/models"

	validation "github.com/go-ozzo/ozzo-validation"
)

type EmbedCfg struct {
	// MountTarget is the element id the page renders the dashboard into.
	MountTarget string `json:"mount_target" yaml:"mount_target"`
	// UIConfig is the dashboardUiConfig text a new session starts with.
	UIConfig string `json:"ui_config" yaml:"ui_config"`
	// Domain pre-fills the Superset domain for new sessions.
	Domain string `json:"domain" yaml:"domain"`
}

func (EmbedCfg) Default() EmbedCfg {
	return EmbedCfg{
		MountTarget: "embedded-container",
		UIConfig:    models.DefaultUIConfig,
	}
}

func (cfg EmbedCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.MountTarget, validation.Required),
	)
}
