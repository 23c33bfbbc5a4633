package app

import (
	"encoding/json"

	"embedctl/config"
	"embedctl/metrics"
	"embedctl/models"

	"github.com/lancer-kit/uwe/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

const (
	RHeaderSessionID = "session_id"
	RHeaderState     = "state"

	publisherBuffer = 256
)

// RabbitPublisher sends every session lifecycle event to an exchange.
// The routing key is the event kind.
type RabbitPublisher struct {
	config  config.RabbitMQ
	logger  zerolog.Logger
	devMode bool

	conn    *amqp.Connection
	channel *amqp.Channel

	inBus chan models.SessionEvent
}

func NewRabbitPublisher(logger zerolog.Logger, configuration config.RabbitMQ) (*RabbitPublisher, chan<- models.SessionEvent) {
	inBus := make(chan models.SessionEvent, publisherBuffer)

	return &RabbitPublisher{
		logger:  logger,
		devMode: logger.GetLevel() == zerolog.TraceLevel,
		config:  configuration,
		inBus:   inBus,
	}, inBus
}

func (worker *RabbitPublisher) Init() error {
	var err error
	worker.conn, err = amqp.Dial(worker.config.Auth.URL())
	if err != nil {
		return errors.Wrap(err, "failed to connect to RabbitMQ")
	}

	worker.channel, err = worker.conn.Channel()
	if err != nil {
		return errors.Wrap(err, "failed to open a channel")
	}

	return worker.ensureExchange(worker.config.Exchange)
}

func (worker *RabbitPublisher) ensureExchange(exchange config.Exchange) error {
	err := worker.channel.ExchangeDeclare(
		exchange.Exchange, exchange.ExchangeType,
		exchange.Durable, exchange.AutoDelete, false, false, nil,
	)
	if err != nil {
		return errors.Wrap(err, "failed to declare exchange - "+exchange.Exchange)
	}
	return nil
}

func (worker *RabbitPublisher) Run(wCtx uwe.Context) error {
	for {
		select {
		case event := <-worker.inBus:
			if err := worker.publish(event); err != nil {
				worker.logger.Error().Err(err).
					Str("session_id", event.SessionID).
					Str("kind", string(event.Kind)).
					Msg("failed to publish session event")
				continue
			}
			metrics.Inc(metrics.PublishedEvents)

		case <-wCtx.Done():
			worker.logger.Info().Msg("Receive exit code, stop publishing")
			if err := worker.channel.Close(); err != nil {
				worker.logger.Warn().Err(err).Msg("fail when try to close channel")
			}
			if err := worker.conn.Close(); err != nil {
				worker.logger.Warn().Err(err).Msg("fail when try to close connection")
			}

			return nil
		}
	}
}

func (worker *RabbitPublisher) publish(event models.SessionEvent) error {
	msg, err := eventPublishing(event)
	if err != nil {
		return err
	}

	if worker.devMode {
		worker.logger.Trace().Fields(map[string]interface{}{
			"exchange":    worker.config.Exchange.Exchange,
			"routing_key": string(event.Kind),
			"message_id":  msg.MessageId,
			"body":        string(msg.Body),
		}).Msg("publish session event")
	}

	err = worker.channel.Publish(worker.config.Exchange.Exchange, string(event.Kind), false, false, msg)
	return errors.Wrap(err, "failed to publish")
}

func eventPublishing(event models.SessionEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, errors.Wrap(err, "failed to marshal session event")
	}

	return amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   event.At,
		MessageId:   event.SessionID + ":" + string(event.Kind) + ":" + event.At.Format("20060102150405.000000000"),
		Headers: amqp.Table{
			RHeaderSessionID: event.SessionID,
			RHeaderState:     string(event.Snapshot.State),
		},
		Body: body,
	}, nil
}
