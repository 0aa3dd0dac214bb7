package rtpparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	original := Packet{
		Marker:         true,
		PayloadType:    0,
		SequenceNumber: 42,
		Timestamp:      160000,
		SSRC:           0xdeadbeef,
		Payload:        []byte{1, 2, 3, 4},
	}
	buf, err := Build(original)
	require.NoError(t, err)

	parsed, err := Parse(buf)
	require.NoError(t, err)
	assert.Equal(t, original.Marker, parsed.Marker)
	assert.Equal(t, original.PayloadType, parsed.PayloadType)
	assert.Equal(t, original.SequenceNumber, parsed.SequenceNumber)
	assert.Equal(t, original.Timestamp, parsed.Timestamp)
	assert.Equal(t, original.SSRC, parsed.SSRC)
	assert.Equal(t, original.Payload, parsed.Payload)
}

func TestParseRejectsShortBuffer(t *testing.T) {
	_, err := Parse([]byte{0x80, 0x00, 0x00})
	require.Error(t, err)
}

func TestParseRejectsWrongVersion(t *testing.T) {
	buf := make([]byte, 12)
	buf[0] = 0x40 // version 1
	_, err := Parse(buf)
	require.Error(t, err)
}
