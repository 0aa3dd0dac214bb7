// Package recorder writes mono 16-bit PCM WAV files with deferred
// header finalization, per the design notes (finalize-on-graceful-
// shutdown; a SIGKILL before Close leaves a placeholder trailer).
package recorder

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/nettools/pagemon/internal/perr"
)

const (
	headerSize   = 44
	bitsPerSample = 16
	channels      = 1
	formatPCM     = 1
)

// Recorder writes a canonical RIFF/WAVE PCM16 mono file. Not safe for
// concurrent use; one Recorder per open page.
type Recorder struct {
	path       string
	f          *os.File
	sampleRate uint32
	samples    uint64
	reopened   bool
}

// Open creates path and writes a placeholder 44-byte header (sizes
// patched on Close). The recorder's native sample rate is sampleRate.
func Open(path string, sampleRate uint32) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, perr.New(perr.KindRecorderIOError, "", "create wav file", err)
	}
	r := &Recorder{path: path, f: f, sampleRate: sampleRate}
	if err := r.writeHeader(0); err != nil {
		f.Close()
		return nil, err
	}
	// WriteAt does not move the file offset; start sample data after the header.
	if _, err := f.Seek(headerSize, io.SeekStart); err != nil {
		f.Close()
		return nil, perr.New(perr.KindRecorderIOError, "", "seek past wav header", err)
	}
	return r, nil
}

func (r *Recorder) writeHeader(dataBytes uint32) error {
	var hdr [headerSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataBytes)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(hdr[20:22], formatPCM)
	binary.LittleEndian.PutUint16(hdr[22:24], channels)
	binary.LittleEndian.PutUint32(hdr[24:28], r.sampleRate)
	byteRate := r.sampleRate * channels * bitsPerSample / 8
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	blockAlign := uint16(channels * bitsPerSample / 8)
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], bitsPerSample)
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataBytes)

	if _, err := r.f.WriteAt(hdr[:], 0); err != nil {
		return perr.New(perr.KindRecorderIOError, "", "write wav header", err)
	}
	return nil
}

// Append writes mono 16-bit samples, retrying once on a short write.
func (r *Recorder) Append(samples []int16) error {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(s))
	}

	written := 0
	for written < len(buf) {
		n, err := r.f.Write(buf[written:])
		if err != nil {
			if !r.reopened {
				r.reopened = true
				if reopenErr := r.reopen(); reopenErr == nil {
					continue
				}
			}
			return perr.New(perr.KindRecorderIOError, "", "write wav samples", err)
		}
		written += n
	}
	r.samples += uint64(len(samples))
	return nil
}

func (r *Recorder) reopen() error {
	r.f.Close()
	// Not O_APPEND: Close rewrites the header with WriteAt, which an
	// O_APPEND file rejects.
	f, err := os.OpenFile(r.path, os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("reopen %s: %w", r.path, err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return fmt.Errorf("reopen %s: %w", r.path, err)
	}
	r.f = f
	return nil
}

// Close patches the header's size fields with the final sample count and
// fsyncs the file. This is the only finalization path pagemon relies on
// (option (b) from the design notes); a process killed with SIGKILL
// leaves the placeholder sizes written at Open.
func (r *Recorder) Close() error {
	dataBytes := uint32(r.samples * 2)
	if err := r.writeHeader(dataBytes); err != nil {
		r.f.Close()
		return err
	}
	if err := r.f.Sync(); err != nil {
		r.f.Close()
		return perr.New(perr.KindRecorderIOError, "", "fsync wav file", err)
	}
	return r.f.Close()
}

// Samples returns the number of mono samples written so far.
func (r *Recorder) Samples() uint64 { return r.samples }

// Path returns the output file path.
func (r *Recorder) Path() string { return r.path }
