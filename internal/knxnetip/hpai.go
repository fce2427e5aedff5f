package knxnetip

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
)

// HPAI constants.
const (
	hpaiSize = 8

	// ProtocolUDP is the only host protocol code this client speaks.
	ProtocolUDP = 0x01
)

// HPAI (Host Protocol Address Information) is an IPv4 endpoint
// descriptor. It is always 8 bytes on the wire.
type HPAI struct {
	Addr netip.Addr
	Port uint16
}

// NewHPAI builds an HPAI from an address and port. Non-IPv4 addresses
// are encoded as 0.0.0.0.
func NewHPAI(ap netip.AddrPort) HPAI {
	return HPAI{Addr: ap.Addr().Unmap(), Port: ap.Port()}
}

// HPAIFromUDPAddr converts a resolved UDP address.
func HPAIFromUDPAddr(addr *net.UDPAddr) HPAI {
	if addr == nil {
		return HPAI{}
	}
	return NewHPAI(addr.AddrPort())
}

// AddrPort returns the endpoint. A zero HPAI yields 0.0.0.0:0.
func (h HPAI) AddrPort() netip.AddrPort {
	return netip.AddrPortFrom(h.ipv4(), h.Port)
}

// UDPAddr returns the endpoint as a *net.UDPAddr.
func (h HPAI) UDPAddr() *net.UDPAddr {
	return net.UDPAddrFromAddrPort(h.AddrPort())
}

// IsZero reports whether the HPAI is the wildcard 0.0.0.0:0 used by
// NAT-mode clients.
func (h HPAI) IsZero() bool {
	return h.Port == 0 && h.ipv4() == netip.IPv4Unspecified()
}

// String returns "ip:port".
func (h HPAI) String() string {
	return h.AddrPort().String()
}

func (h HPAI) ipv4() netip.Addr {
	a := h.Addr.Unmap()
	if !a.Is4() {
		return netip.IPv4Unspecified()
	}
	return a
}

// DecodeHPAI parses an 8-byte HPAI structure.
//
// Returns ErrMalformedFrame when the structure length is not 8 or the
// host protocol is not UDP.
func DecodeHPAI(b []byte) (HPAI, error) {
	if len(b) != hpaiSize || b[0] != hpaiSize {
		return HPAI{}, fmt.Errorf("%w: HPAI length %d", ErrMalformedFrame, len(b))
	}
	if b[1] != ProtocolUDP {
		return HPAI{}, fmt.Errorf("%w: HPAI host protocol 0x%02X, want UDP", ErrMalformedFrame, b[1])
	}
	return HPAI{
		Addr: netip.AddrFrom4([4]byte(b[2:6])),
		Port: binary.BigEndian.Uint16(b[6:8]),
	}, nil
}

// AppendTo writes the 8-byte HPAI to b.
func (h HPAI) AppendTo(b []byte) []byte {
	ip := h.ipv4().As4()
	b = append(b, hpaiSize, ProtocolUDP)
	b = append(b, ip[:]...)
	return binary.BigEndian.AppendUint16(b, h.Port)
}

// Encode returns the 8-byte wire form.
func (h HPAI) Encode() []byte {
	return h.AppendTo(make([]byte, 0, hpaiSize))
}
