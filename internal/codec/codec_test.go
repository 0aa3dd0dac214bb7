package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freqHz float64, sampleRate uint32, n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/float64(sampleRate)))
	}
	return out
}

func snrDB(original, reconstructed []int16) float64 {
	var sigEnergy, noiseEnergy float64
	for i := range original {
		s := float64(original[i])
		n := float64(original[i]) - float64(reconstructed[i])
		sigEnergy += s * s
		noiseEnergy += n * n
	}
	if noiseEnergy == 0 {
		return 1000
	}
	return 10 * math.Log10(sigEnergy/noiseEnergy)
}

func TestG711ULawRoundTripSNR(t *testing.T) {
	samples := sineWave(1000, 8000, 800, 16384) // -6dBFS-ish at 1kHz
	enc := newG711Encoder(uLawCompand)
	dec := newG711Decoder(uLawDecompand)

	encoded, err := enc.Encode(samples)
	require.NoError(t, err)
	decoded, err := dec.Decode(encoded)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snrDB(samples, decoded), 30.0)
}

func TestG711ALawRoundTripSNR(t *testing.T) {
	samples := sineWave(1000, 8000, 800, 16384)
	enc := newG711Encoder(aLawCompand)
	dec := newG711Decoder(aLawDecompand)

	encoded, err := enc.Encode(samples)
	require.NoError(t, err)
	decoded, err := dec.Decode(encoded)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snrDB(samples, decoded), 30.0)
}

func TestL16RoundTripBitExact(t *testing.T) {
	samples := sineWave(1000, 44100, 512, 16384)
	enc := newL16Encoder(44100, 1)
	dec := newL16Decoder(44100, 1)

	encoded, err := enc.Encode(samples)
	require.NoError(t, err)
	decoded, err := dec.Decode(encoded)
	require.NoError(t, err)

	assert.Equal(t, samples, decoded)
}

func TestRegistryDecoderForStaticPT(t *testing.T) {
	reg := NewRegistry("")
	dec, err := reg.DecoderFor(uint8(PTG711ULaw), "")
	require.NoError(t, err)
	assert.EqualValues(t, 8000, dec.SampleRate())
}

func TestRegistryDecoderForDynamicPTWithoutHintDefaultsToOpus(t *testing.T) {
	reg := NewRegistry("")
	dec, err := reg.DecoderFor(96, "")
	require.NoError(t, err)
	assert.EqualValues(t, 48000, dec.SampleRate())
}

func TestRegistryDecoderForUnknownStaticPT(t *testing.T) {
	reg := NewRegistry("")
	_, err := reg.DecoderFor(20, "")
	require.Error(t, err)
}

func TestRegistryEncoderByNameUnknown(t *testing.T) {
	reg := NewRegistry("")
	_, err := reg.EncoderByName("nonexistent", nil)
	require.Error(t, err)
}

func TestStaticPayloadType(t *testing.T) {
	pt, ok := StaticPayloadType("g711ulaw")
	require.True(t, ok)
	assert.EqualValues(t, 0, pt)

	_, ok = StaticPayloadType("opus")
	assert.False(t, ok)
}
