package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nettools/pagemon/internal/analyzer"
	"github.com/nettools/pagemon/internal/jitter"
	"github.com/nettools/pagemon/internal/page"
	"github.com/nettools/pagemon/internal/perr"
)

func TestSinkWritesJSONLAndSummary(t *testing.T) {
	dir := t.TempDir()
	start := time.Now().UTC()
	meta := &TestMetadata{
		StartTime:          start,
		Pattern:            "224.0.1.42",
		EndpointsMonitored: 1,
		MetricsIntervalMs:  500,
		TimeoutSecs:        8,
		RunID:              "run-123",
	}
	sink, err := NewSink(dir, meta, nil)
	require.NoError(t, err)

	now := time.Now()
	sink.ReportPage(page.Summary{
		PageNumber:   1,
		Endpoint:     "224.0.1.42:5004",
		StartTime:    now,
		EndTime:      now.Add(2 * time.Second),
		DurationSecs: 2,
		Network:      jitter.NetworkStats{Packets: 100, Lost: 1},
	})
	sink.ReportError(perr.New(perr.KindMalformedRTP, "224.0.1.42:5004", "short header", nil))
	sink.ReportSnapshot("224.0.1.42:5004", page.Tick{
		Active:       true,
		PageNumber:   1,
		DurationSecs: 1.5,
		Network:      jitter.NetworkSnapshot{Packets: 50, LossPercent: 1, JitterMs: 0.2},
		Audio:        analyzer.Snapshot{RMSDb: -10, PeakDb: -3, DominantFreqHz: 1000, Glitches: 0, Clipped: 0},
	})
	sink.ReportSnapshot("224.0.1.43:5004", page.Tick{})

	require.NoError(t, sink.Close(start.Add(8*time.Second)))

	raw, err := os.ReadFile(filepath.Join(dir, "metrics.jsonl"))
	require.NoError(t, err)
	lines := splitNonEmptyLines(string(raw))
	require.Len(t, lines, 2)

	var active tickRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &active))
	assert.Equal(t, "224.0.1.42:5004", active.Endpoint)
	assert.True(t, active.PageActive)
	require.NotNil(t, active.PageNumber)
	assert.EqualValues(t, 1, *active.PageNumber)
	require.NotNil(t, active.DurationSecs)
	assert.Equal(t, 1000.0, active.Audio.DominantFreqHz)

	var idle tickRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &idle))
	assert.False(t, idle.PageActive)
	assert.Nil(t, idle.PageNumber)
	assert.Nil(t, idle.DurationSecs)

	summaryRaw, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var doc Document
	require.NoError(t, json.Unmarshal(summaryRaw, &doc))
	require.Len(t, doc.Pages, 1)
	require.Contains(t, doc.EndpointTotals, "224.0.1.42:5004")
	assert.EqualValues(t, 100, doc.EndpointTotals["224.0.1.42:5004"].TotalPackets)
	require.NotNil(t, doc.TestMetadata)
	assert.Equal(t, "run-123", doc.TestMetadata.RunID)
	assert.Equal(t, "224.0.1.42", doc.TestMetadata.Pattern)
	assert.Equal(t, 1, doc.TestMetadata.EndpointsMonitored)
	assert.InDelta(t, 8, doc.TestMetadata.DurationSecs, 0.01)
	require.Len(t, doc.Errors, 1)
}

func TestSinkDropsWhenQueueFull(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewSink(dir, nil, nil)
	require.NoError(t, err)
	defer sink.Close(time.Now())

	// Block the worker goroutine's consumption momentarily by flooding the
	// bounded queue faster than it can drain; some sends must be dropped
	// without blocking the caller.
	for i := 0; i < eventQueueCapacity*2; i++ {
		sink.ReportPage(page.Summary{PageNumber: uint64(i), Endpoint: "224.0.1.1:5004"})
	}
	// No assertion on the exact dropped count (timing-dependent), only
	// that ReportPage never blocked long enough to fail the test's
	// implicit deadline and that Dropped() is a valid non-negative count.
	assert.GreaterOrEqual(t, sink.Dropped(), uint64(0))
}

func splitNonEmptyLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
