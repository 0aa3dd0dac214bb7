package main

import "github.com/urfave/cli"

// reviewCommand, polycomTransmitCommand and polycomMonitorCommand round
// out the external-interfaces subcommand list but have no implementation
// here: review needs an offline waveform/spectrogram viewer and the
// polycom-* commands need vendor-specific SIP paging group signaling,
// both out of scope for this build.
var reviewCommand = cli.Command{
	Name:   "review",
	Usage:  "not implemented: offline review of a captured run",
	Action: notImplemented,
}

var polycomTransmitCommand = cli.Command{
	Name:   "polycom-transmit",
	Usage:  "not implemented: Polycom-signaled paging transmit",
	Action: notImplemented,
}

var polycomMonitorCommand = cli.Command{
	Name:   "polycom-monitor",
	Usage:  "not implemented: Polycom-signaled paging monitor",
	Action: notImplemented,
}

func notImplemented(c *cli.Context) error {
	return cli.NewExitError(c.Command.Name+" is not implemented", 1)
}
