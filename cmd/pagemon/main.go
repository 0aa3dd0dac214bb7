// Command pagemon monitors, transmits, and tests multicast paging audio
// streams. See the monitor, transmit, and test subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/nettools/pagemon/internal/applog"
)

var pageLog = applog.Component("pagemon")

func main() {
	app := cli.NewApp()
	app.Name = "pagemon"
	app.Usage = "monitor and test multicast paging RTP streams"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "log-level",
			Value: "info",
			Usage: "log level: debug, info, warn, error",
		},
	}

	app.Before = func(c *cli.Context) error {
		applog.Init(c.String("log-level"))
		return nil
	}

	app.Commands = []cli.Command{
		monitorCommand,
		transmitCommand,
		testCommand,
		reviewCommand,
		polycomTransmitCommand,
		polycomMonitorCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if exitErr, ok := err.(cli.ExitCoder); ok {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}
