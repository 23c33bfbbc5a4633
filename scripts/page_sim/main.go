package main

import (
	"flag"
	"fmt"

	"github.com/lancer-kit/uwe/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("conf", "page_sim.yaml", "path to config file")
	flag.Parse()

	logger := logrus.New()

	cfg, err := readConfig(*configPath)
	if err != nil {
		logger.WithError(err).Error("unable to load config")
		return
	}

	chief := uwe.NewChief()
	chief.UseDefaultRecover()
	chief.SetEventHandler(func(event uwe.Event) {
		entry := logger.WithFields(logrus.Fields(event.Fields))
		switch event.Level {
		case uwe.LvlFatal, uwe.LvlError:
			entry.Error(event.Message)
		case uwe.LvlInfo:
			entry.Info(event.Message)
		default:
			entry.Warn(event.Message)
		}
	})

	for i := 0; i < cfg.Pages; i++ {
		name := fmt.Sprintf("page_%d", i)
		chief.AddWorker(uwe.WorkerName(name), NewPage(cfg, logger.WithField("page", name)))
	}

	chief.Run()
}
