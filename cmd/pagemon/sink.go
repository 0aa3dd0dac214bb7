package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nettools/pagemon/internal/metrics"
	"github.com/nettools/pagemon/internal/page"
	"github.com/nettools/pagemon/internal/perr"
)

// consoleSink implements page.Sink for monitor, reporting each closed page
// and each error on the console rather than writing metrics.jsonl/
// summary.json: with jsonLines, pages go to stdout as JSON and errors to
// stderr; otherwise both are log lines. Prom, if non-nil, is updated regardless of
// jsonLines so --metrics-http stays accurate either way.
type consoleSink struct {
	jsonLines bool
	prom      *metrics.Prom
}

func newConsoleSink(jsonLines bool, prom *metrics.Prom) *consoleSink {
	return &consoleSink{jsonLines: jsonLines, prom: prom}
}

func (c *consoleSink) ReportPage(sum page.Summary) {
	c.prom.ObservePage(sum)
	if c.jsonLines {
		enc, _ := json.Marshal(sum)
		fmt.Println(string(enc))
		return
	}
	pageLog.WithField("endpoint", sum.Endpoint).WithField("page_number", sum.PageNumber).
		WithField("duration_secs", sum.DurationSecs).Info("page closed")
}

func (c *consoleSink) ReportError(err *perr.Error) {
	c.prom.ObserveError(err)
	entry := perr.EntryFromError(time.Now().UTC(), err)
	if c.jsonLines {
		enc, _ := json.Marshal(entry)
		fmt.Fprintln(os.Stderr, string(enc))
		return
	}
	pageLog.WithField("endpoint", entry.Endpoint).WithField("kind", entry.Kind).Warn(entry.Message)
}
