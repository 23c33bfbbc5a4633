package app

import (
	"embedctl/app/ws"
	"embedctl/cache"
	"embedctl/config"
	"embedctl/superset"

	"github.com/lancer-kit/uwe/v2"
	"github.com/rs/zerolog"
)

const (
	WorkerHub             = "hub"
	WorkerAPI             = "embed_api_server"
	WorkerRabbitPublisher = "rabbit_publisher"
)

func InitChief(logger zerolog.Logger, cfg config.Cfg) uwe.Chief {
	defer func() {
		rec := recover()
		if rec != nil {
			logger.Fatal().Interface("recover", rec).Msg("caught panic")
		}
	}()
	logger = logger.With().Str("app_layer", "workers").Logger()

	chief := uwe.NewChief()
	chief.UseDefaultRecover()
	chief.SetEventHandler(func(event uwe.Event) {
		var level zerolog.Level
		switch event.Level {
		case uwe.LvlFatal, uwe.LvlError:
			level = zerolog.ErrorLevel
		case uwe.LvlInfo:
			level = zerolog.InfoLevel
		default:
			level = zerolog.WarnLevel
		}

		logger.WithLevel(level).Fields(event.Fields).Msg(event.Message)
	})

	journal, err := cache.NewStorage(cfg.Cache)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize session journal")
	}

	hubLogger := logger.With().Str("worker", WorkerHub).Logger()
	hub := ws.NewHub(hubLogger, cfg.Embed, superset.NewClient(hubLogger), journal)

	if cfg.EnableEvents {
		publisher, events := NewRabbitPublisher(
			logger.With().Str("worker", WorkerRabbitPublisher).Logger(),
			cfg.RabbitMQ,
		)
		hub.SetPublisher(events)
		chief.AddWorker(WorkerRabbitPublisher, publisher)
	}

	webServer := GetServer(
		logger.With().Str("worker", WorkerAPI).Logger(),
		cfg,
		hub.Context(),
		hub.Communicator(),
	)

	chief.AddWorker(WorkerHub, hub)
	chief.AddWorker(WorkerAPI, webServer)

	return chief
}
