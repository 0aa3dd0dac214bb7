package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli"

	"github.com/nettools/pagemon/internal/endpoint"
	"github.com/nettools/pagemon/internal/metrics"
	"github.com/nettools/pagemon/internal/supervisor"
)

var testCommand = cli.Command{
	Name:      "test",
	Usage:     "run a bounded-duration monitor pass and write metrics.jsonl/summary.json",
	ArgsUsage: " ",
	Action:    runTest,
	Flags: []cli.Flag{
		cli.StringFlag{Name: "address", Usage: "endpoint pattern, e.g. 224.0.1.42"},
		cli.IntFlag{Name: "port", Value: 5004, Usage: "default port when --address omits one"},
		cli.StringFlag{Name: "codec", Usage: "force a codec name instead of inferring it from the RTP payload type"},
		cli.StringFlag{Name: "output", Usage: "directory to write metrics.jsonl/summary.json/page recordings into"},
		cli.IntFlag{Name: "timeout", Usage: "run duration in seconds"},
		cli.IntFlag{Name: "metrics-interval", Value: 500, Usage: "metrics.jsonl tick interval in milliseconds"},
	},
}

func runTest(c *cli.Context) error {
	pattern := c.String("address")
	if pattern == "" {
		return cli.NewExitError("--address is required", 2)
	}
	outDir := c.String("output")
	if outDir == "" {
		return cli.NewExitError("--output is required", 2)
	}
	timeout := c.Int("timeout")
	if timeout <= 0 {
		return cli.NewExitError("--timeout is required and must be positive", 2)
	}

	endpoints, err := endpoint.Expand(pattern, uint16(c.Int("port")), true)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}

	runID := uuid.New().String()

	sup, err := supervisor.New(supervisor.Options{
		Endpoints:       endpoints,
		OutDir:          outDir,
		GapThreshold:    5 * time.Second,
		CodecHint:       c.String("codec"),
		RunID:           runID,
		Pattern:         pattern,
		TimeoutSecs:     timeout,
		Prom:            metrics.NewProm("pagemon", "test"),
		MetricsInterval: time.Duration(c.Int("metrics-interval")) * time.Millisecond,
	})
	if err != nil {
		// Past argument validation (whose errors exit 2), test exits 0;
		// a setup failure is logged.
		pageLog.WithError(err).Error("failed to start test run")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	pageLog.WithField("run_id", runID).WithField("endpoints", len(endpoints)).Info("test run starting")
	if err := sup.Run(ctx); err != nil {
		pageLog.WithError(err).Error("test run ended with an error")
	}
	pageLog.WithField("run_id", runID).Info("test run finished")
	return nil
}
