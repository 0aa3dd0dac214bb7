package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/nettools/pagemon/internal/endpoint"
	"github.com/nettools/pagemon/internal/metrics"
	"github.com/nettools/pagemon/internal/perr"
	"github.com/nettools/pagemon/internal/supervisor"
)

var monitorCommand = cli.Command{
	Name:      "monitor",
	Usage:     "watch one or more multicast paging endpoints and record pages to WAV",
	ArgsUsage: " ",
	Action:    runMonitor,
	Flags: []cli.Flag{
		cli.StringFlag{Name: "address", Usage: "endpoint pattern, e.g. 224.0.1.{1-3}:{5004-5005}"},
		cli.IntFlag{Name: "port", Value: 5004, Usage: "default port when --address omits one"},
		cli.StringFlag{Name: "codec", Usage: "force a codec name instead of inferring it from the RTP payload type"},
		cli.StringFlag{Name: "output", Usage: "record all pages to this single WAV file (single endpoint only)"},
		cli.IntFlag{Name: "timeout", Usage: "stop after this many seconds; 0 runs until interrupted"},
		cli.BoolFlag{Name: "json", Usage: "print one JSON object per page/error to stdout/stderr instead of log lines"},
		cli.StringFlag{Name: "metrics-http", Usage: "expose Prometheus metrics on this address, e.g. :9090"},
		cli.StringFlag{Name: "interfaces", Usage: "comma-separated list of interfaces to join on; default all multicast-capable"},
	},
}

func runMonitor(c *cli.Context) error {
	pattern := c.String("address")
	if pattern == "" {
		return cli.NewExitError("--address is required", 2)
	}

	endpoints, err := endpoint.Expand(pattern, uint16(c.Int("port")), true)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	output := c.String("output")
	if output != "" && len(endpoints) != 1 {
		return cli.NewExitError(perr.New(perr.KindAmbiguousOutput, "", "--output requires exactly one endpoint", nil).Error(), 2)
	}

	var prom *metrics.Prom
	if addr := c.String("metrics-http"); addr != "" {
		prom = metrics.NewProm("pagemon", "monitor")
		go serveMetricsHTTP(addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		pageLog.Info("received shutdown signal")
		cancel()
	}()

	if timeout := c.Int("timeout"); timeout > 0 {
		go func() {
			select {
			case <-time.After(time.Duration(timeout) * time.Second):
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	sink := newConsoleSink(c.Bool("json"), prom)

	sup, err := supervisor.NewWithSink(supervisor.Options{
		Endpoints:    endpoints,
		OutDir:       os.TempDir(),
		GapThreshold: 5 * time.Second,
		Interfaces:   splitCommaList(c.String("interfaces")),
		CodecHint:    c.String("codec"),
		Prom:         prom,
	}, sink, output)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}

	if err := sup.Run(ctx); err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}

func splitCommaList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
