package main

import (
	"context"
	"math/bits"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/nettools/pagemon/internal/codec"
	"github.com/nettools/pagemon/internal/endpoint"
	"github.com/nettools/pagemon/internal/pcmsource"
	"github.com/nettools/pagemon/internal/transmit"
)

// transmitSSRC picks a random-enough SSRC for one transmit run; RFC 3550
// only requires the initial value be unpredictable, not cryptographic.
func transmitSSRC() uint32 {
	return uint32(bits.RotateLeft64(uint64(time.Now().UnixNano()), 29))
}

var transmitCommand = cli.Command{
	Name:      "transmit",
	Usage:     "stream a WAV file as RTP to a single multicast endpoint",
	ArgsUsage: " ",
	Action:    runTransmit,
	Flags: []cli.Flag{
		cli.StringFlag{Name: "file", Usage: "PCM16 WAV file to stream"},
		cli.StringFlag{Name: "address", Usage: "destination A.B.C.D (no ranges)"},
		cli.IntFlag{Name: "port", Value: 5004, Usage: "destination UDP port"},
		cli.StringFlag{Name: "codec", Value: "g711ulaw", Usage: "codec to encode with"},
		cli.BoolFlag{Name: "loop", Usage: "restart the file at EOF instead of exiting"},
		cli.IntFlag{Name: "ttl", Value: 1, Usage: "multicast TTL, 1-255"},
	},
}

func runTransmit(c *cli.Context) error {
	file := c.String("file")
	if file == "" {
		return cli.NewExitError("--file is required", 2)
	}
	addr := c.String("address")
	if addr == "" {
		return cli.NewExitError("--address is required", 2)
	}
	ttl := c.Int("ttl")
	if ttl < 1 || ttl > 255 {
		return cli.NewExitError("--ttl must be in [1,255]", 2)
	}

	endpoints, err := endpoint.Expand(addr, uint16(c.Int("port")), false)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	if len(endpoints) != 1 {
		return cli.NewExitError("transmit requires exactly one destination endpoint", 2)
	}
	dest := endpoints[0]

	src, err := pcmsource.OpenWAV(file)
	if err != nil {
		return cli.NewExitError(err.Error(), 1)
	}
	defer src.Close()

	codecName := c.String("codec")
	reg := codec.NewRegistry("")
	enc, err := reg.EncoderByName(codecName, nil)
	if err != nil {
		return cli.NewExitError(err.Error(), 2)
	}
	pt, ok := codec.StaticPayloadType(codecName)
	if !ok {
		return cli.NewExitError("codec "+codecName+" has no static payload type; not supported for transmit", 2)
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

	opts := transmit.Options{
		Dest:        dest,
		PayloadType: pt,
		Encoder:     enc,
		SSRC:        transmitSSRC(),
		Loop:        c.Bool("loop"),
		TTL:         ttl,
	}

	res, err := transmit.Run(ctx, src, opts)
	pageLog.WithField("packets_sent", res.PacketsSent).WithField("bytes_sent", res.BytesSent).
		WithField("late_packets", res.LatePackets).WithField("loops", res.Loops).Info("transmit finished")
	if err != nil && err != context.Canceled {
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
