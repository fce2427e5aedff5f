package knxnetip

import (
	"encoding/binary"
	"fmt"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

// Header constants.
const (
	// HeaderSize is the fixed KNXnet/IP header length.
	HeaderSize = 6

	// ProtocolVersion is KNXnet/IP version 1.0.
	ProtocolVersion = 0x10

	// DefaultPort is the standard KNXnet/IP UDP port.
	DefaultPort = 3671

	// DefaultMulticastGroup is the standard discovery and routing group.
	DefaultMulticastGroup = "224.0.23.12"
)

// Header is the 6-byte KNXnet/IP frame header. The header length and
// protocol version are fixed and not stored.
type Header struct {
	Service     ServiceType
	TotalLength uint16
}

// BodyLength returns the number of body bytes announced by the header.
func (h Header) BodyLength() int {
	return int(h.TotalLength) - HeaderSize
}

// DecodeHeader parses and validates the header at the start of b.
//
// Returns ErrMalformedFrame when the header length or version bytes are
// wrong, or the total length is smaller than the header or larger than
// b. The service type is not checked here.
func DecodeHeader(b []byte) (Header, error) {
	c := knx.NewCursor(b)
	raw, err := c.Take(HeaderSize)
	if err != nil {
		return Header{}, fmt.Errorf("%w: header: %w", ErrMalformedFrame, err)
	}
	if raw[0] != HeaderSize {
		return Header{}, fmt.Errorf("%w: header length 0x%02X, want 0x06", ErrMalformedFrame, raw[0])
	}
	if raw[1] != ProtocolVersion {
		return Header{}, fmt.Errorf("%w: protocol version 0x%02X, want 0x10", ErrMalformedFrame, raw[1])
	}

	h := Header{
		Service:     ServiceType(binary.BigEndian.Uint16(raw[2:4])),
		TotalLength: binary.BigEndian.Uint16(raw[4:6]),
	}
	if h.TotalLength < HeaderSize {
		return Header{}, fmt.Errorf("%w: total length %d below header size", ErrMalformedFrame, h.TotalLength)
	}
	if int(h.TotalLength) > len(b) {
		return Header{}, fmt.Errorf("%w: total length %d exceeds datagram of %d bytes: %w",
			ErrMalformedFrame, h.TotalLength, len(b), knx.ErrTruncated)
	}
	return h, nil
}

// AppendTo writes the header to b.
func (h Header) AppendTo(b []byte) []byte {
	b = append(b, HeaderSize, ProtocolVersion)
	b = binary.BigEndian.AppendUint16(b, uint16(h.Service))
	return binary.BigEndian.AppendUint16(b, h.TotalLength)
}
