// Package rtpparse decodes RTP packets per RFC 3550, borrowing the
// payload slice from the input buffer rather than copying it.
package rtpparse

import (
	"github.com/pion/rtp"

	"github.com/nettools/pagemon/internal/perr"
)

// MinHeaderSize is the fixed RTP header size before CSRCs.
const MinHeaderSize = 12

// ExpectedVersion is the only RTP version pagemon accepts.
const ExpectedVersion = 2

// Packet is a borrowing, parsed view over one RTP datagram.
type Packet struct {
	Version        uint8
	PayloadType    uint8
	Marker         bool
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32
	Payload        []byte // sub-slice of the original buffer, not copied
}

// Parse decodes buf into a Packet. It rejects version != 2 and buffers
// shorter than the fixed header before delegating to pion/rtp, which
// itself validates CSRC count and any extension header length.
func Parse(buf []byte) (Packet, error) {
	if len(buf) < MinHeaderSize {
		return Packet{}, perr.New(perr.KindMalformedRTP, "", "buffer shorter than RTP header", nil)
	}
	if version := buf[0] >> 6; version != ExpectedVersion {
		return Packet{}, perr.New(perr.KindMalformedRTP, "", "unsupported RTP version", nil)
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return Packet{}, perr.New(perr.KindMalformedRTP, "", "pion/rtp unmarshal failed", err)
	}

	return Packet{
		Version:        pkt.Version,
		PayloadType:    pkt.PayloadType,
		Marker:         pkt.Marker,
		SequenceNumber: pkt.SequenceNumber,
		Timestamp:      pkt.Timestamp,
		SSRC:           pkt.SSRC,
		CSRC:           pkt.CSRC,
		Payload:        pkt.Payload,
	}, nil
}

// Build serializes a Packet back to wire bytes, used by the transmit
// pipeline (C10). CSRC count is always emitted as 0 and no extension
// header is written, per spec.
func Build(p Packet) ([]byte, error) {
	out := rtp.Packet{
		Header: rtp.Header{
			Version:        ExpectedVersion,
			Marker:         p.Marker,
			PayloadType:    p.PayloadType,
			SequenceNumber: p.SequenceNumber,
			Timestamp:      p.Timestamp,
			SSRC:           p.SSRC,
		},
		Payload: p.Payload,
	}
	return out.Marshal()
}
