package main

import (
	"fmt"
	"os"

	"embedctl/app"
	"embedctl/config"
	"embedctl/log"

	"github.com/urfave/cli"
)

const flagConfig = "config"

//nolint:gochecknoglobals
var (
	build   = "n/a"
	version = "n/a"
)

func main() {
	config.App.Build = build
	config.App.Version = version

	newApp := cli.NewApp()
	newApp.Usage = "A " + config.ServiceName + " service: Superset dashboard embedding sessions"
	newApp.Version = config.App.Version + ":" + config.App.Build
	newApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  flagConfig + ", c",
			Value: "./config.yaml",
		},
	}
	newApp.Commands = []cli.Command{
		{
			Name:   "serve",
			Usage:  "starts " + config.ServiceName + " workers",
			Action: serveAction,
		},
		{
			Name:   "check-config",
			Usage:  "validates the configuration file and exits",
			Action: checkConfigAction,
		},
	}

	if err := newApp.Run(os.Args); err != nil {
		fmt.Println("failed run newApp:", err.Error())
		os.Exit(1)
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := config.ReadConfig(c.GlobalString(flagConfig))
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	logger := log.New(cfg.Log)

	chief := app.InitChief(logger, cfg)
	chief.Run()
	return nil
}

func checkConfigAction(c *cli.Context) error {
	if _, err := config.ReadConfig(c.GlobalString(flagConfig)); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	fmt.Println("configuration is valid")
	return nil
}
