package pcmsource

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nettools/pagemon/internal/perr"
)

// WAVSource reads mono or stereo 16-bit PCM from a canonical RIFF/WAVE
// file, the mirror image of internal/recorder's writer.
type WAVSource struct {
	f          *os.File
	sampleRate uint32
	channels   int
	remaining  int64 // bytes left in the data chunk
	dataOffset int64 // file offset where the data chunk's payload begins
	dataSize   int64 // total size of the data chunk, for Reset
}

// OpenWAV parses path's RIFF/fmt /data chunks and positions the reader at
// the start of sample data. Only uncompressed PCM (format tag 1), 16-bit
// mono or stereo files are supported; anything else is a
// KindUnsupportedPayload error since transmit has no transcoding path
// for arbitrary input files.
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, perr.New(perr.KindRecorderIOError, "", "open wav file", err)
	}

	var riffHdr [12]byte
	if _, err := io.ReadFull(f, riffHdr[:]); err != nil {
		f.Close()
		return nil, perr.New(perr.KindUnsupportedPayload, "", "read riff header", err)
	}
	if string(riffHdr[0:4]) != "RIFF" || string(riffHdr[8:12]) != "WAVE" {
		f.Close()
		return nil, perr.New(perr.KindUnsupportedPayload, "", "not a RIFF/WAVE file", nil)
	}

	w := &WAVSource{f: f}
	var formatTag, bitsPerSample uint16
	sawFmt, sawData := false, false

	for !sawData {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(f, chunkHdr[:]); err != nil {
			f.Close()
			return nil, perr.New(perr.KindUnsupportedPayload, "", "truncated wav chunk header", err)
		}
		id := string(chunkHdr[0:4])
		size := binary.LittleEndian.Uint32(chunkHdr[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(f, body); err != nil {
				f.Close()
				return nil, perr.New(perr.KindUnsupportedPayload, "", "truncated fmt chunk", err)
			}
			formatTag = binary.LittleEndian.Uint16(body[0:2])
			w.channels = int(binary.LittleEndian.Uint16(body[2:4]))
			w.sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			sawFmt = true
		case "data":
			w.remaining = int64(size)
			w.dataSize = int64(size)
			off, err := f.Seek(0, io.SeekCurrent)
			if err != nil {
				f.Close()
				return nil, perr.New(perr.KindUnsupportedPayload, "", "locate data chunk offset", err)
			}
			w.dataOffset = off
			sawData = true
		default:
			if _, err := f.Seek(int64(size), io.SeekCurrent); err != nil {
				f.Close()
				return nil, perr.New(perr.KindUnsupportedPayload, "", fmt.Sprintf("skip chunk %q", id), err)
			}
		}
	}

	if !sawFmt {
		f.Close()
		return nil, perr.New(perr.KindUnsupportedPayload, "", "wav file has no fmt chunk", nil)
	}
	if formatTag != 1 || bitsPerSample != 16 {
		f.Close()
		return nil, perr.New(perr.KindUnsupportedPayload, "", "only 16-bit PCM wav files are supported", nil)
	}
	if w.channels != 1 && w.channels != 2 {
		f.Close()
		return nil, perr.New(perr.KindUnsupportedPayload, "", "only mono or stereo wav files are supported", nil)
	}

	return w, nil
}

// Read fills buf with up to len(buf) samples, returning io.EOF once the
// data chunk is exhausted.
func (w *WAVSource) Read(buf []int16) (int, error) {
	if w.remaining <= 0 {
		return 0, io.EOF
	}
	want := len(buf) * 2
	if int64(want) > w.remaining {
		want = int(w.remaining)
	}
	raw := make([]byte, want-(want%2))
	n, err := io.ReadFull(w.f, raw)
	w.remaining -= int64(n)
	samples := n / 2
	for i := 0; i < samples; i++ {
		buf[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return samples, err
	}
	return samples, nil
}

func (w *WAVSource) SampleRate() uint32 { return w.sampleRate }
func (w *WAVSource) Channels() int      { return w.channels }
func (w *WAVSource) Close() error       { return w.f.Close() }

// Reset rewinds to the start of the data chunk, used by transmit's
// --loop to repeat a file indefinitely under the same SSRC.
func (w *WAVSource) Reset() error {
	if _, err := w.f.Seek(w.dataOffset, io.SeekStart); err != nil {
		return perr.New(perr.KindRecorderIOError, "", "seek wav file for reset", err)
	}
	w.remaining = w.dataSize
	return nil
}
