// Package page tracks one paging session (one continuous burst of RTP
// packets on a single endpoint, keyed by SSRC) from first packet to
// idle-timeout or SSRC change, and finalizes it into a PageSummary.
package page

import (
	"sync"
	"time"

	"github.com/nettools/pagemon/internal/analyzer"
	"github.com/nettools/pagemon/internal/endpoint"
	"github.com/nettools/pagemon/internal/jitter"
)

// MinPagePackets is the minimum packet count a page must reach before it
// is reported; shorter bursts (keepalives, transient noise) are discarded
// without consuming a reusable page number.
const MinPagePackets = 3

// Counter hands out strictly increasing page numbers shared across every
// endpoint a supervisor is watching, so that summary.json's page_number
// field reflects global creation order regardless of which endpoint a
// page belongs to.
type Counter struct {
	mu   sync.Mutex
	next uint64
}

// Next returns the next page number, starting at 1.
func (c *Counter) Next() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	return c.next
}

// Page holds the live state of one open (or just-closed) paging session.
type Page struct {
	Number         uint64
	Endpoint       endpoint.Endpoint
	SSRC           uint32
	StartWall      time.Time
	LastPacketWall time.Time
	EndWall        time.Time
	RecordingFile  string
	PacketCount    uint64

	Net   jitter.NetworkStats
	Audio analyzer.Stats
}

// Summary is the closed-page view reported to a Sink, matching
// summary.json's per-page schema.
type Summary struct {
	PageNumber    uint64              `json:"page_number"`
	Endpoint      string              `json:"endpoint"`
	StartTime     time.Time           `json:"start_time"`
	EndTime       time.Time           `json:"end_time"`
	DurationSecs  float64             `json:"duration_secs"`
	RecordingFile string              `json:"recording_file"`
	Network       jitter.NetworkStats `json:"network"`
	Audio         analyzer.Stats      `json:"audio"`
}

// Tick is a point-in-time view of a session's currently open page, sampled
// on the metrics tick; Active is false (and the rest zero) when the
// endpoint is idle. Matches metrics.jsonl's per-endpoint, per-tick schema.
type Tick struct {
	Active       bool
	PageNumber   uint64
	DurationSecs float64
	Network      jitter.NetworkSnapshot
	Audio        analyzer.Snapshot
}

func (p *Page) toSummary() Summary {
	return Summary{
		PageNumber:    p.Number,
		Endpoint:      endpoint.Render(p.Endpoint),
		StartTime:     p.StartWall,
		EndTime:       p.EndWall,
		DurationSecs:  p.EndWall.Sub(p.StartWall).Seconds(),
		RecordingFile: p.RecordingFile,
		Network:       p.Net,
		Audio:         p.Audio,
	}
}
