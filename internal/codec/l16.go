package codec

import "encoding/binary"

// l16Decoder decodes linear 16-bit big-endian PCM (RFC 3551 L16). Decode
// frame size equals input byte count / 2, per spec. Stereo is passed
// through interleaved; downmixing to mono happens in the analyzer.
type l16Decoder struct {
	sampleRate uint32
	channels   int
}

func newL16Decoder(sampleRate uint32, channels int) *l16Decoder {
	return &l16Decoder{sampleRate: sampleRate, channels: channels}
}

func (d *l16Decoder) Decode(in []byte) ([]int16, error) {
	n := len(in) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.BigEndian.Uint16(in[i*2 : i*2+2]))
	}
	return out, nil
}

func (d *l16Decoder) SampleRate() uint32 { return d.sampleRate }
func (d *l16Decoder) FrameSamples() int  { return 0 }
func (d *l16Decoder) Reset()             {}

type l16Encoder struct {
	sampleRate uint32
	channels   int
}

func newL16Encoder(sampleRate uint32, channels int) *l16Encoder {
	return &l16Encoder{sampleRate: sampleRate, channels: channels}
}

func (e *l16Encoder) Encode(in []int16) ([]byte, error) {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		binary.BigEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out, nil
}

func (e *l16Encoder) SampleRate() uint32 { return e.sampleRate }
func (e *l16Encoder) FrameSamples() int  { return int(e.sampleRate / 50) } // 20ms
