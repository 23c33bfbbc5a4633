package main

import (
	"io/ioutil"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type PageCfg struct {
	// URL of the embedctl websocket endpoint.
	URL         string `yaml:"url"`
	Pages       int    `yaml:"pages"`
	Domain      string `yaml:"domain"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DashboardID string `yaml:"dashboard_id"`
	// HoldDelay is how long a page keeps the dashboard before a reset, in ms.
	HoldDelay int `yaml:"hold_delay"`
	// FailEvery makes every n-th activation fail in the page; 0 disables it.
	FailEvery int `yaml:"fail_every"`
}

func (cfg PageCfg) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.URL, validation.Required),
		validation.Field(&cfg.Pages, validation.Required, validation.Min(1)),
		validation.Field(&cfg.Domain, validation.Required),
		validation.Field(&cfg.DashboardID, validation.Required),
	)
}

func readConfig(path string) (PageCfg, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return PageCfg{}, errors.Wrap(err, "can`t read config file")
	}

	cfg := PageCfg{Pages: 1, HoldDelay: 1000}
	if err = yaml.Unmarshal(raw, &cfg); err != nil {
		return PageCfg{}, errors.Wrap(err, "can`t unmarshal the config file")
	}
	return cfg, cfg.Validate()
}
