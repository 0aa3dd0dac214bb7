package transmit

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nettools/pagemon/internal/codec"
	"github.com/nettools/pagemon/internal/endpoint"
	"github.com/nettools/pagemon/internal/rtpparse"
)

type fakeSource struct {
	samples []int16
	pos     int
	loops   int
}

func (f *fakeSource) Read(buf []int16) (int, error) {
	if f.pos >= len(f.samples) {
		return 0, io.EOF
	}
	n := copy(buf, f.samples[f.pos:])
	f.pos += n
	if f.pos >= len(f.samples) {
		return n, io.EOF
	}
	return n, nil
}
func (f *fakeSource) SampleRate() uint32 { return 8000 }
func (f *fakeSource) Channels() int      { return 1 }
func (f *fakeSource) Reset() error       { f.pos = 0; f.loops++; return nil }
func (f *fakeSource) Close() error       { return nil }

func TestRunSendsExpectedPacketCount(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer listener.Close()

	dest := endpoint.Endpoint{Addr: net.ParseIP("127.0.0.1"), Port: uint16(listener.LocalAddr().(*net.UDPAddr).Port)}

	reg := codec.NewRegistry("")
	enc, err := reg.EncoderByName("g711ulaw", nil)
	require.NoError(t, err)

	src := &fakeSource{samples: make([]int16, 160*3)} // 3 frames of 20ms @ 8kHz

	opts := Options{Dest: dest, PayloadType: uint8(codec.PTG711ULaw), Encoder: enc, SSRC: 0xDEADBEEF}

	resultCh := make(chan Result, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := Run(context.Background(), src, opts)
		resultCh <- res
		errCh <- err
	}()

	buf := make([]byte, 1500)
	var received int
	var lastSeq uint16
	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	for received < 3 {
		n, _, err := listener.ReadFromUDP(buf)
		require.NoError(t, err)
		pkt, err := rtpparse.Parse(buf[:n])
		require.NoError(t, err)
		require.EqualValues(t, 0xDEADBEEF, pkt.SSRC)
		if received > 0 {
			require.Equal(t, lastSeq+1, pkt.SequenceNumber)
		}
		lastSeq = pkt.SequenceNumber
		received++
	}
	require.Equal(t, 3, received)
}

func TestRunLoopsAndKeepsSSRC(t *testing.T) {
	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer listener.Close()

	dest := endpoint.Endpoint{Addr: net.ParseIP("127.0.0.1"), Port: uint16(listener.LocalAddr().(*net.UDPAddr).Port)}

	enc, err := codec.NewRegistry("").EncoderByName("g711ulaw", nil)
	require.NoError(t, err)

	src := &fakeSource{samples: make([]int16, 160)} // one frame per pass, so every packet follows a restart

	opts := Options{Dest: dest, PayloadType: uint8(codec.PTG711ULaw), Encoder: enc, SSRC: 0xCAFEF00D, Loop: true}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _, _ = Run(ctx, src, opts) }()

	buf := make([]byte, 1500)
	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	for i := 0; i < 3; i++ {
		n, _, err := listener.ReadFromUDP(buf)
		require.NoError(t, err)
		pkt, err := rtpparse.Parse(buf[:n])
		require.NoError(t, err)
		require.EqualValues(t, 0xCAFEF00D, pkt.SSRC)
		require.True(t, pkt.Marker, "the first packet of each pass carries the marker bit")
	}
}
