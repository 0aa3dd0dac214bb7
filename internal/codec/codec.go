// Package codec maps RTP payload types to decoders and constructs
// encoders by name, per the codec descriptor table in the design notes.
package codec

import "github.com/nettools/pagemon/internal/perr"

// Decoder turns codec-native bytes into 16-bit PCM samples. Stateless
// codecs (G.711, L16) may share a single Decoder across calls; stateful
// codecs (G.722, Opus) must not.
type Decoder interface {
	Decode(in []byte) ([]int16, error)
	SampleRate() uint32
	FrameSamples() int
	Reset()
}

// Encoder turns 16-bit PCM samples into codec-native bytes.
type Encoder interface {
	Encode(in []int16) ([]byte, error)
	SampleRate() uint32
	FrameSamples() int
}

// PayloadType is the RTP PT carried on the wire (7 bits).
type PayloadType uint8

// Static payload type assignments per RFC 3551 (spec §3's codec table).
const (
	PTG711ULaw  PayloadType = 0
	PTG711ALaw  PayloadType = 8
	PTG722      PayloadType = 9
	PTL16Stereo PayloadType = 10
	PTL16Mono   PayloadType = 11
)

// Descriptor describes a codec's wire shape, used both to construct
// decoders/encoders and to report jitter's rtp_clock_rate.
type Descriptor struct {
	Name         string
	StaticPT     PayloadType
	Dynamic      bool
	SampleRate   uint32
	FrameSamples int
	Channels     int
}

// IsDynamicPT reports whether pt falls in the unassigned dynamic range
// (96-127), which is ambiguous without out-of-band signaling.
func IsDynamicPT(pt uint8) bool { return pt >= 96 && pt <= 127 }

// DefaultDynamicCodec is assumed for dynamic PTs absent a user hint, per
// the design notes' "dynamic payload types" policy.
const DefaultDynamicCodec = "opus"

// Registry maps payload types to decoder/encoder constructors. The zero
// value is usable; decoders and encoders are built on demand from the
// fixed name/payload-type switch, so there is no table to populate.
type Registry struct {
	transcoderPath string // external audio transcoder binary, for G.722/Opus
}

// NewRegistry constructs a Registry. transcoderPath is the path to the
// external audio-transcoder binary used for G.722 and Opus; pass "" to
// use the default lookup ("audio-transcoder" on $PATH).
func NewRegistry(transcoderPath string) *Registry {
	return &Registry{transcoderPath: transcoderPath}
}

// DecoderFor builds the decoder for a received packet's payload type.
// hint, if non-empty, is a user-forced codec name that overrides the PT
// mapping entirely (required for dynamic PTs, optional otherwise).
func (r *Registry) DecoderFor(pt uint8, hint string) (Decoder, error) {
	name := hint
	if name == "" {
		var err error
		name, err = nameForStaticPT(pt)
		if err != nil {
			if !IsDynamicPT(pt) {
				return nil, err
			}
			name = DefaultDynamicCodec
		}
	}
	return r.decoderByName(name)
}

func nameForStaticPT(pt uint8) (string, error) {
	switch PayloadType(pt) {
	case PTG711ULaw:
		return "g711ulaw", nil
	case PTG711ALaw:
		return "g711alaw", nil
	case PTG722:
		return "g722", nil
	case PTL16Stereo:
		return "l16stereo", nil
	case PTL16Mono:
		return "l16mono", nil
	default:
		return "", perr.New(perr.KindUnsupportedPayload, "", "no static mapping for payload type", nil)
	}
}

func (r *Registry) decoderByName(name string) (Decoder, error) {
	switch name {
	case "g711ulaw":
		return newG711Decoder(uLawDecompand), nil
	case "g711alaw":
		return newG711Decoder(aLawDecompand), nil
	case "l16mono":
		return newL16Decoder(44100, 1), nil
	case "l16stereo":
		return newL16Decoder(44100, 2), nil
	case "g722":
		return newTranscoderDecoder(r.transcoderPath, "g722", 16000, 160)
	case "opus":
		return newTranscoderDecoder(r.transcoderPath, "opus", 48000, 960)
	default:
		return nil, perr.New(perr.KindUnsupportedPayload, "", "unknown codec name "+name, nil)
	}
}

// EncoderByName builds an encoder for the transmit pipeline (C10).
func (r *Registry) EncoderByName(name string, opts map[string]string) (Encoder, error) {
	switch name {
	case "g711ulaw":
		return newG711Encoder(uLawCompand), nil
	case "g711alaw":
		return newG711Encoder(aLawCompand), nil
	case "l16mono":
		return newL16Encoder(44100, 1), nil
	case "l16stereo":
		return newL16Encoder(44100, 2), nil
	case "g722":
		return newTranscoderEncoder(r.transcoderPath, "g722", 16000, 160)
	case "opus":
		return newTranscoderEncoder(r.transcoderPath, "opus", 48000, 960)
	default:
		return nil, perr.New(perr.KindUnsupportedPayload, "", "unknown codec name "+name, nil)
	}
}

// StaticPayloadType returns the fixed PT for a static codec name, or
// false for dynamic codecs such as opus.
func StaticPayloadType(name string) (uint8, bool) {
	switch name {
	case "g711ulaw":
		return uint8(PTG711ULaw), true
	case "g711alaw":
		return uint8(PTG711ALaw), true
	case "g722":
		return uint8(PTG722), true
	case "l16stereo":
		return uint8(PTL16Stereo), true
	case "l16mono":
		return uint8(PTL16Mono), true
	default:
		return 0, false
	}
}
