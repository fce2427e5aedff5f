package knxnetip

import (
	"encoding/binary"
	"fmt"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

const (
	criTunnelSize = 4
	criBasicSize  = 2
)

// CRI (Connection Request Information) is carried by a ConnectRequest.
type CRI struct {
	ConnectionType ConnectionType
	// Layer is only sent for tunnel connections.
	Layer TunnelLayer
}

// TunnelCRI returns the CRI for a link-layer tunnel.
func TunnelCRI() CRI {
	return CRI{ConnectionType: TunnelConnection, Layer: TunnelLinkLayer}
}

// AppendTo writes the CRI to b.
func (c CRI) AppendTo(b []byte) []byte {
	if c.ConnectionType == TunnelConnection {
		return append(b, criTunnelSize, byte(c.ConnectionType), byte(c.Layer), 0x00)
	}
	return append(b, criBasicSize, byte(c.ConnectionType))
}

func decodeCRI(b []byte) (CRI, error) {
	if len(b) < criBasicSize {
		return CRI{}, fmt.Errorf("%w: CRI of %d bytes", ErrMalformedFrame, len(b))
	}
	c := CRI{ConnectionType: ConnectionType(b[1])}
	if c.ConnectionType == TunnelConnection {
		if len(b) != criTunnelSize {
			return CRI{}, fmt.Errorf("%w: tunnel CRI of %d bytes, want 4", ErrMalformedFrame, len(b))
		}
		c.Layer = TunnelLayer(b[2])
	}
	return c, nil
}

// CRD (Connection Response Data) is carried by a ConnectResponse.
type CRD struct {
	ConnectionType ConnectionType
	// Address is the individual address assigned to a tunnel.
	Address knx.PhysicalAddress
}

// AppendTo writes the CRD to b.
func (c CRD) AppendTo(b []byte) []byte {
	if c.ConnectionType == TunnelConnection {
		b = append(b, criTunnelSize, byte(c.ConnectionType))
		return binary.BigEndian.AppendUint16(b, uint16(c.Address))
	}
	return append(b, criBasicSize, byte(c.ConnectionType))
}

func decodeCRD(b []byte) (CRD, error) {
	if len(b) < criBasicSize {
		return CRD{}, fmt.Errorf("%w: CRD of %d bytes", ErrMalformedFrame, len(b))
	}
	c := CRD{ConnectionType: ConnectionType(b[1])}
	if c.ConnectionType == TunnelConnection {
		if len(b) != criTunnelSize {
			return CRD{}, fmt.Errorf("%w: tunnel CRD of %d bytes, want 4", ErrMalformedFrame, len(b))
		}
		c.Address = knx.PhysicalAddress(binary.BigEndian.Uint16(b[2:4]))
	}
	return c, nil
}
