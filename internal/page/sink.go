package page

import "github.com/nettools/pagemon/internal/perr"

// Sink receives finalized page summaries and mid-stream errors. It is
// implemented by the metrics package; defining the interface here (rather
// than importing metrics) keeps page free of a dependency on the JSONL/
// Prometheus machinery that consumes it.
type Sink interface {
	ReportPage(Summary)
	ReportError(*perr.Error)
}

// NopSink discards everything; useful in tests that only care about FSM
// transitions, not the reporting side effect.
type NopSink struct{}

func (NopSink) ReportPage(Summary)    {}
func (NopSink) ReportError(*perr.Error) {}
