package knxnetip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"unicode"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

// DIBType is the description type code in the second byte of a DIB.
type DIBType uint8

// Description types.
const (
	DIBDeviceInfo         DIBType = 0x01
	DIBSupportedFamilies  DIBType = 0x02
	DIBIPConfig           DIBType = 0x03
	DIBIPCurrentConfig    DIBType = 0x04
	DIBKNXAddresses       DIBType = 0x05
	DIBSecuredFamilies    DIBType = 0x06
	DIBTunnellingInfo     DIBType = 0x07
	DIBExtendedDeviceInfo DIBType = 0x08
	DIBManufacturerData   DIBType = 0xFE
)

// DeviceInfo layout.
const (
	deviceInfoSize    = 54
	deviceInfoNameOff = 24
	deviceNameSize    = 30
	serialSize        = 6
	macSize           = 6
	dibHeaderSize     = 2

	// statusProgMode is bit 0 of the device status byte.
	statusProgMode = 0x01
)

// DIB is a Description Information Block.
type DIB interface {
	Type() DIBType
	// AppendTo writes the DIB, length byte included, to b.
	AppendTo(b []byte) []byte
}

// DeviceInfo describes a KNXnet/IP device.
type DeviceInfo struct {
	Medium    uint8
	Status    uint8
	Address   knx.PhysicalAddress
	ProjectID uint16
	Serial    [serialSize]byte
	Multicast netip.Addr
	MAC       [macSize]byte
	Name      string
}

// Type implements DIB.
func (DeviceInfo) Type() DIBType { return DIBDeviceInfo }

// SerialString renders the serial number as "0011:22334455".
func (d DeviceInfo) SerialString() string {
	return knx.ToHex(d.Serial[:2]) + ":" + knx.ToHex(d.Serial[2:])
}

// HardwareAddr returns the MAC address.
func (d DeviceInfo) HardwareAddr() net.HardwareAddr {
	return net.HardwareAddr(d.MAC[:])
}

// ProgrammingMode reports whether the device is in programming mode.
func (d DeviceInfo) ProgrammingMode() bool {
	return d.Status&statusProgMode != 0
}

// AppendTo implements DIB. The name is NUL-padded or truncated to 30 bytes.
func (d DeviceInfo) AppendTo(b []byte) []byte {
	b = append(b, deviceInfoSize, byte(DIBDeviceInfo), d.Medium, d.Status)
	b = binary.BigEndian.AppendUint16(b, uint16(d.Address))
	b = binary.BigEndian.AppendUint16(b, d.ProjectID)
	b = append(b, d.Serial[:]...)
	mc := netip.IPv4Unspecified()
	if d.Multicast.Unmap().Is4() {
		mc = d.Multicast.Unmap()
	}
	ip := mc.As4()
	b = append(b, ip[:]...)
	b = append(b, d.MAC[:]...)

	var name [deviceNameSize]byte
	copy(name[:], d.Name)
	return append(b, name[:]...)
}

func decodeDeviceInfo(b []byte) (DeviceInfo, error) {
	if len(b) < deviceInfoNameOff {
		return DeviceInfo{}, fmt.Errorf("%w: device info DIB of %d bytes", ErrMalformedFrame, len(b))
	}
	d := DeviceInfo{
		Medium:    b[2],
		Status:    b[3],
		Address:   knx.PhysicalAddress(binary.BigEndian.Uint16(b[4:6])),
		ProjectID: binary.BigEndian.Uint16(b[6:8]),
		Multicast: netip.AddrFrom4([4]byte(b[14:18])),
	}
	copy(d.Serial[:], b[8:14])
	copy(d.MAC[:], b[18:24])
	d.Name = decodeName(b[deviceInfoNameOff:])
	return d, nil
}

// decodeName cuts the name at the first NUL and trims whitespace.
// Invalid UTF-8 sequences are dropped.
func decodeName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimFunc(strings.ToValidUTF8(string(b), ""), unicode.IsSpace)
}

// FamilyVersion is one entry of a SupportedServiceFamilies DIB.
type FamilyVersion struct {
	Family  ServiceFamily
	Version uint8
}

// SupportedServiceFamilies lists the service families a device
// implements, in wire order.
type SupportedServiceFamilies struct {
	Families []FamilyVersion
}

// Type implements DIB.
func (SupportedServiceFamilies) Type() DIBType { return DIBSupportedFamilies }

// Version returns the supported version of family f.
func (s SupportedServiceFamilies) Version(f ServiceFamily) (uint8, bool) {
	for _, fv := range s.Families {
		if fv.Family == f {
			return fv.Version, true
		}
	}
	return 0, false
}

// AppendTo implements DIB.
func (s SupportedServiceFamilies) AppendTo(b []byte) []byte {
	b = append(b, byte(dibHeaderSize+2*len(s.Families)), byte(DIBSupportedFamilies)) //nolint:gosec // bounded by DIB size
	for _, fv := range s.Families {
		b = append(b, byte(fv.Family), fv.Version)
	}
	return b
}

func decodeFamilies(b []byte) (SupportedServiceFamilies, error) {
	pairs := b[dibHeaderSize:]
	if len(pairs)%2 != 0 {
		return SupportedServiceFamilies{}, fmt.Errorf("%w: service family DIB has odd length %d", ErrMalformedFrame, len(b))
	}
	s := SupportedServiceFamilies{Families: make([]FamilyVersion, 0, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		s.Families = append(s.Families, FamilyVersion{Family: ServiceFamily(pairs[i]), Version: pairs[i+1]})
	}
	return s, nil
}

// OtherDIB keeps a recognised but unparsed DIB as raw bytes.
type OtherDIB struct {
	DIBType DIBType
	// Data is the block content after the length and type bytes.
	Data []byte
}

// Type implements DIB.
func (o OtherDIB) Type() DIBType { return o.DIBType }

// AppendTo implements DIB.
func (o OtherDIB) AppendTo(b []byte) []byte {
	b = append(b, byte(dibHeaderSize+len(o.Data)), byte(o.DIBType)) //nolint:gosec // bounded by DIB size
	return append(b, o.Data...)
}

// DIBList is an ordered list of description blocks.
type DIBList []DIB

// DeviceInfo returns the first DeviceInfo block.
func (l DIBList) DeviceInfo() (DeviceInfo, bool) {
	for _, d := range l {
		if di, ok := d.(DeviceInfo); ok {
			return di, true
		}
	}
	return DeviceInfo{}, false
}

// Families returns the first SupportedServiceFamilies block.
func (l DIBList) Families() (SupportedServiceFamilies, bool) {
	for _, d := range l {
		if sf, ok := d.(SupportedServiceFamilies); ok {
			return sf, true
		}
	}
	return SupportedServiceFamilies{}, false
}

// AppendTo writes every block in order.
func (l DIBList) AppendTo(b []byte) []byte {
	for _, d := range l {
		b = d.AppendTo(b)
	}
	return b
}

// DecodeDIBs reads length-prefixed blocks until body is exhausted.
// Unrecognised description types are skipped.
func DecodeDIBs(body []byte) (DIBList, error) {
	c := knx.NewCursor(body)
	var out DIBList
	for c.Len() > 0 {
		block, err := c.TakeStructure()
		if err != nil {
			return nil, fmt.Errorf("%w: DIB at offset %d: %w", ErrMalformedFrame, c.Offset(), err)
		}
		if len(block) < dibHeaderSize {
			return nil, fmt.Errorf("%w: DIB of %d bytes", ErrMalformedFrame, len(block))
		}

		switch t := DIBType(block[1]); t {
		case DIBDeviceInfo:
			d, err := decodeDeviceInfo(block)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		case DIBSupportedFamilies:
			s, err := decodeFamilies(block)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		case DIBIPConfig, DIBIPCurrentConfig, DIBKNXAddresses, DIBSecuredFamilies,
			DIBTunnellingInfo, DIBExtendedDeviceInfo, DIBManufacturerData:
			out = append(out, OtherDIB{DIBType: t, Data: append([]byte(nil), block[dibHeaderSize:]...)})
		default:
			// Unknown description type: skip.
		}
	}
	return out, nil
}
