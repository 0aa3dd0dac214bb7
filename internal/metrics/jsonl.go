package metrics

import (
	"bufio"
	"encoding/json"
	"os"
	"time"

	"github.com/nettools/pagemon/internal/analyzer"
	"github.com/nettools/pagemon/internal/jitter"
	"github.com/nettools/pagemon/internal/perr"
)

// tickRecord is one line of metrics.jsonl: a snapshot of one endpoint,
// written once per metrics tick whether or not it currently has a page
// open. PageNumber/DurationSecs are null when the endpoint is idle.
type tickRecord struct {
	Timestamp    time.Time              `json:"timestamp"`
	Endpoint     string                 `json:"endpoint"`
	PageActive   bool                   `json:"page_active"`
	PageNumber   *uint64                `json:"page_number"`
	DurationSecs *float64               `json:"duration_secs"`
	Network      jitter.NetworkSnapshot `json:"network"`
	Audio        analyzer.Snapshot      `json:"audio"`
}

// jsonlWriter appends newline-delimited JSON records to a file. Writes are
// line-buffered (each record is flushed to the file as it is written);
// the file is only fsynced on Close, so an appended but not yet fsynced
// line may be lost on crash, in exchange for not fsyncing on every tick.
type jsonlWriter struct {
	f *os.File
	w *bufio.Writer
}

func newJSONLWriter(path string) (*jsonlWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, perr.New(perr.KindRecorderIOError, "", "open metrics.jsonl", err)
	}
	return &jsonlWriter{f: f, w: bufio.NewWriter(f)}, nil
}

func (j *jsonlWriter) write(rec tickRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err = j.w.Write(line); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *jsonlWriter) close() error {
	if err := j.w.Flush(); err != nil {
		j.f.Close()
		return perr.New(perr.KindRecorderIOError, "", "flush metrics.jsonl", err)
	}
	if err := j.f.Sync(); err != nil {
		j.f.Close()
		return perr.New(perr.KindRecorderIOError, "", "fsync metrics.jsonl", err)
	}
	return j.f.Close()
}
