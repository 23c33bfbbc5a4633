package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/lancer-kit/noble"
)

type RabbitMQ struct {
	Auth     RabbitAuth `json:"auth" yaml:"auth"`
	Exchange Exchange   `json:"exchange" yaml:"exchange"`
}

func (cfg RabbitMQ) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Auth, validation.Required),
		validation.Field(&cfg.Exchange, validation.Required),
	)
}

type RabbitAuth struct {
	Host     string       `json:"host" yaml:"host"`
	User     noble.Secret `json:"user" yaml:"user"`
	Password noble.Secret `json:"password" yaml:"password"`
}

func (cfg RabbitAuth) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Host, validation.Required),
	)
}

func (cfg RabbitAuth) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s", cfg.User.Get(), cfg.Password.Get(), cfg.Host)
}

type Exchange struct {
	Exchange     string `json:"exchange" yaml:"exchange"`
	ExchangeType string `json:"exchange_type" yaml:"exchange_type"`
	// Durable exchanges will survive server restarts
	Durable bool `json:"durable" yaml:"durable"`
	// Will remain declared when there are no remaining bindings.
	AutoDelete bool `json:"auto_delete" yaml:"auto_delete"`
}

func (cfg Exchange) Validate() error {
	return validation.ValidateStruct(&cfg,
		validation.Field(&cfg.Exchange, validation.Required),
		validation.Field(&cfg.ExchangeType, validation.Required, validation.In("direct", "fanout", "topic")),
	)
}
