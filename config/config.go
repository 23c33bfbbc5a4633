package config

import (
	"io/ioutil"

	"embedctl/log"
	"embedctl/metrics"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/lancer-kit/noble"
	"github.com/lancer-kit/uwe/v2/presets/api"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	ServiceName = "embedctl"
)

type AppInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Build   string `json:"build"`
}

//nolint:gochecknoglobals
var App = AppInfo{Name: ServiceName}

// Cfg main structure of the app configuration.
type Cfg struct {
	Log   log.Config `json:"log" yaml:"log"`
	API   api.Config `json:"api" yaml:"api"`
	Embed EmbedCfg   `json:"embed" yaml:"embed"`

	EnableUI bool `json:"enable_ui" yaml:"enable_ui"`

	EnableAuth         bool                    `json:"enable_auth" yaml:"enable_auth"`
	AuthorizedServices map[string]noble.Secret `json:"authorized_services" yaml:"authorized_services"`

	Cache CacheCfg `json:"cache" yaml:"cache"`

	EnableEvents bool     `json:"enable_events" yaml:"enable_events"`
	RabbitMQ     RabbitMQ `json:"rabbit_mq" yaml:"rabbit_mq"`

	Monitoring metrics.MonitoringConf `json:"monitoring" yaml:"monitoring"`
}

func (cfg Cfg) Validate() error {
	if cfg.EnableAuth {
		err := validation.Required.Validate(cfg.AuthorizedServices)
		if err != nil {
			return errors.Wrap(err, "authorized_services")
		}

		for service, secret := range cfg.AuthorizedServices {
			err = noble.RequiredSecret.Validate(secret)
			if err != nil {
				return errors.Wrap(err, service)
			}
		}
	}

	if cfg.EnableEvents {
		if err := cfg.RabbitMQ.Validate(); err != nil {
			return errors.Wrap(err, "rabbit_mq")
		}
	}

	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.API, validation.Required),
		validation.Field(&cfg.Embed),
		validation.Field(&cfg.Cache),
		validation.Field(&cfg.Monitoring),
	)
}

func ReadConfig(path string) (Cfg, error) {
	rawConfig, err := ioutil.ReadFile(path)
	if err != nil {
		return Cfg{}, errors.Wrapf(err, "unable to read config file %s", path)
	}

	return ParseConfig(rawConfig)
}

func ParseConfig(rawConfig []byte) (Cfg, error) {
	config := Cfg{Log: log.Config{}.Default(), Embed: EmbedCfg{}.Default()}
	err := yaml.Unmarshal(rawConfig, &config)
	if err != nil {
		return Cfg{}, errors.Wrap(err, "unable to unmarshal config file")
	}

	err = config.Validate()
	if err != nil {
		return Cfg{}, errors.Wrap(err, "invalid configuration")
	}

	if config.Monitoring.Metrics {
		metrics.Init(config.Monitoring.Namespace)
	}

	return config, nil
}
