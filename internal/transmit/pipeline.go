// Package transmit reads PCM from a pcmsource.Source, encodes and
// packetizes it as RTP, and paces delivery onto a destination endpoint,
// implementing the design notes' Transmit Pipeline component.
package transmit

import (
	"context"
	"errors"
	"io"
	"math/bits"
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/nettools/pagemon/internal/codec"
	"github.com/nettools/pagemon/internal/endpoint"
	"github.com/nettools/pagemon/internal/pcmsource"
	"github.com/nettools/pagemon/internal/perr"
	"github.com/nettools/pagemon/internal/rtpparse"
)

// Options configures one transmit run.
type Options struct {
	Dest        endpoint.Endpoint
	PayloadType uint8
	Encoder     codec.Encoder
	SSRC        uint32 // fixed for the whole run, including across Loop repeats
	Loop        bool
	TTL         int // multicast TTL, 1-255; 0 means "leave the OS default"
}

// Result summarizes a finished (or canceled) transmit run.
type Result struct {
	PacketsSent uint64
	BytesSent   uint64
	LatePackets uint64
	Loops       uint64
}

// Run streams src's samples as RTP packets to opts.Dest until src is
// exhausted (or, with opts.Loop, forever until ctx is canceled). Framing
// is driven by opts.Encoder.FrameSamples(); each frame becomes one RTP
// packet.
func Run(ctx context.Context, src pcmsource.Source, opts Options) (Result, error) {
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: opts.Dest.Addr, Port: int(opts.Dest.Port)})
	if err != nil {
		return Result{}, perr.New(perr.KindSocketIOFatal, endpoint.Render(opts.Dest), "dial transmit destination", err)
	}
	defer conn.Close()

	if opts.TTL > 0 {
		if err := ipv4.NewPacketConn(conn).SetMulticastTTL(opts.TTL); err != nil {
			return Result{}, perr.New(perr.KindSocketIOFatal, endpoint.Render(opts.Dest), "set multicast ttl", err)
		}
	}

	frameSamples := opts.Encoder.FrameSamples()
	sampleRate := opts.Encoder.SampleRate()
	frameDuration := time.Duration(frameSamples) * time.Second / time.Duration(sampleRate)

	seq := uint16(randSeed())
	var rtpTS uint32
	pacer := NewPacer(frameDuration, time.Now())

	var res Result
	firstOfStream := true

	for {
		frame := make([]int16, frameSamples)
		n, readErr := readFull(src, frame)
		if n > 0 {
			marker := firstOfStream
			firstOfStream = false

			payload, encErr := opts.Encoder.Encode(frame[:n])
			if encErr != nil {
				return res, perr.New(perr.KindCodecBackendFailure, endpoint.Render(opts.Dest), "encode frame", encErr)
			}

			pkt, buildErr := rtpparse.Build(rtpparse.Packet{
				Version:        rtpparse.ExpectedVersion,
				PayloadType:    opts.PayloadType,
				Marker:         marker,
				SequenceNumber: seq,
				Timestamp:      rtpTS,
				SSRC:           opts.SSRC,
				Payload:        payload,
			})
			if buildErr != nil {
				return res, perr.New(perr.KindMalformedRTP, endpoint.Render(opts.Dest), "build rtp packet", buildErr)
			}

			late, waitErr := pacer.Wait(ctx)
			if waitErr != nil {
				return res, waitErr
			}
			if late {
				res.LatePackets++
			}

			if _, err := conn.Write(pkt); err != nil {
				return res, perr.New(perr.KindSocketIOTransient, endpoint.Render(opts.Dest), "send rtp packet", err)
			}

			seq++
			rtpTS += uint32(frameSamples)
			res.PacketsSent++
			res.BytesSent += uint64(len(pkt))
		}

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				return res, perr.New(perr.KindCodecBackendFailure, endpoint.Render(opts.Dest), "read pcm source", readErr)
			}
			if !opts.Loop {
				return res, nil
			}
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			default:
			}
			if err := src.Reset(); err != nil {
				return res, err
			}
			res.Loops++
			firstOfStream = true
			// SSRC stays fixed across loop repeats per the design notes;
			// only the marker bit resets to flag the new talk spurt.
		}
	}
}

// readFull reads until buf is full or the source returns an error,
// so a source that yields fewer samples than one frame per Read call
// (like pcmsource.WAVSource near EOF) doesn't silently emit a short,
// zero-padded final frame's boundary as an error.
func readFull(src pcmsource.Source, buf []int16) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := src.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, io.ErrNoProgress
		}
	}
	return total, nil
}

// randSeed picks a starting sequence number. time.Now().UnixNano()'s low
// bits are adequate entropy for this: RFC 3550 only requires the initial
// value be random, not cryptographically unpredictable.
func randSeed() uint16 {
	return uint16(bits.RotateLeft64(uint64(time.Now().UnixNano()), 17))
}
