package knx

import (
	"encoding/binary"
	"fmt"
)

// MessageCode identifies the CEMI data-link service.
type MessageCode uint8

// Supported CEMI message codes.
const (
	MessageLDataReq MessageCode = 0x11
	MessageLDataCon MessageCode = 0x2E
	MessageLDataInd MessageCode = 0x29
)

// CEMI layout constants.
const (
	// cemiMinLength is the shortest frame carrying a TPCI and APCI octet.
	cemiMinLength = 11

	// cemiFixedLength is the fixed part without additional info:
	// code, info length, ctrl1, ctrl2, source(2), destination(2), npdu length.
	cemiFixedLength = 9

	// shortDataMask extracts data carried in the APCI octet.
	shortDataMask = 0x3F
)

// IsValid reports whether m is one of the three data-service codes.
func (m MessageCode) IsValid() bool {
	switch m {
	case MessageLDataReq, MessageLDataCon, MessageLDataInd:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (m MessageCode) String() string {
	switch m {
	case MessageLDataReq:
		return "L_Data.req"
	case MessageLDataCon:
		return "L_Data.con"
	case MessageLDataInd:
		return "L_Data.ind"
	default:
		return fmt.Sprintf("MC_0x%02X", uint8(m))
	}
}

// Frame is a decoded CEMI L_Data frame.
type Frame struct {
	Code           MessageCode
	AdditionalInfo []byte
	Flags          Flags
	Source         PhysicalAddress

	// Destination is the raw 16-bit address. Flags.Destination tells
	// whether it is a group or individual address; decoding is the same.
	Destination uint16

	// TPDU holds the TPCI octet, the APCI octet and any data bytes.
	TPDU []byte

	// Text is the human-readable summary produced by the decoder.
	Text string
}

// IsGroup reports whether the destination is a group address.
func (f Frame) IsGroup() bool {
	return f.Flags.Destination == AddressGroup
}

// GroupAddress returns the destination as a group address.
func (f Frame) GroupAddress() (GroupAddress, bool) {
	return GroupAddress(f.Destination), f.IsGroup()
}

// DestinationString renders the destination for its address kind.
func (f Frame) DestinationString(style AddressStyle) string {
	if f.IsGroup() {
		return GroupAddress(f.Destination).Format(style)
	}
	return PhysicalAddress(f.Destination).String()
}

// APCI returns the 10-bit command code. The second result is false for
// transport control frames that carry only a TPCI octet.
func (f Frame) APCI() (APCI, bool) {
	if len(f.TPDU) < 2 { //nolint:mnd // TPCI + APCI
		return 0, false
	}
	return APCI(binary.BigEndian.Uint16(f.TPDU) & apciMask), true
}

// Payload returns the application data: the bytes after the APCI octet,
// or the 6 low APCI bits for short frames.
func (f Frame) Payload() []byte {
	switch {
	case len(f.TPDU) > 2: //nolint:mnd // TPCI + APCI
		return f.TPDU[2:]
	case len(f.TPDU) == 2: //nolint:mnd // TPCI + APCI
		return []byte{f.TPDU[1] & shortDataMask}
	default:
		return nil
	}
}

// Len returns the encoded size of the frame.
func (f Frame) Len() int {
	return cemiFixedLength + len(f.AdditionalInfo) + max(len(f.TPDU), 1)
}

// Encode serialises the frame. It is the inverse of Decoder.DecodeCEMI.
func (f Frame) Encode() []byte {
	tpdu := f.TPDU
	if len(tpdu) == 0 {
		tpdu = []byte{0x00}
	}

	buf := make([]byte, 0, f.Len())
	buf = append(buf, byte(f.Code), byte(len(f.AdditionalInfo))) //nolint:gosec // info length bounded by decoder
	buf = append(buf, f.AdditionalInfo...)
	buf = binary.BigEndian.AppendUint16(buf, f.Flags.Uint16())
	buf = binary.BigEndian.AppendUint16(buf, uint16(f.Source))
	buf = binary.BigEndian.AppendUint16(buf, f.Destination)
	buf = append(buf, byte(len(tpdu)-1)) //nolint:gosec // TPDU fits a standard frame
	buf = append(buf, tpdu...)
	return buf
}

// Decoder turns raw CEMI bytes into frames with a rendered summary.
//
// A zero Decoder is usable: it has no datapoint mappings, uses the
// standard APCI table and renders group addresses in 3-level form.
// Decoders hold only immutable tables and may be shared.
type Decoder struct {
	Datapoints *DPTTable
	Commands   *APCITable
	Style      AddressStyle
}

// DecodeCEMI parses a CEMI L_Data frame.
//
// Returns ErrMalformedCEMI when the frame is shorter than 11 bytes, the
// message code is not a data service, or the declared NPDU length does
// not match the remaining bytes.
func (d Decoder) DecodeCEMI(b []byte) (Frame, error) {
	if len(b) < cemiMinLength {
		return Frame{}, fmt.Errorf("%w: need at least %d bytes, got %d", ErrMalformedCEMI, cemiMinLength, len(b))
	}

	code := MessageCode(b[0])
	if !code.IsValid() {
		return Frame{}, fmt.Errorf("%w: unsupported message code 0x%02X", ErrMalformedCEMI, b[0])
	}

	infoLen := int(b[1])
	if len(b) < cemiFixedLength+infoLen {
		return Frame{}, fmt.Errorf("%w: additional info length %d exceeds frame", ErrMalformedCEMI, infoLen)
	}

	c := NewCursor(b[2:])
	info, _ := c.Take(infoLen)
	ctrl, _ := c.Uint16()
	src, _ := c.Uint16()
	dst, _ := c.Uint16()
	npduLen, _ := c.Byte()
	tpdu := c.Rest()

	if int(npduLen)+1 != len(tpdu) {
		return Frame{}, fmt.Errorf("%w: npdu length %d does not match %d remaining bytes",
			ErrMalformedCEMI, npduLen, len(tpdu))
	}

	f := Frame{
		Code:        code,
		Flags:       DecodeFlags(ctrl),
		Source:      PhysicalAddress(src),
		Destination: dst,
		TPDU:        tpdu,
	}
	if infoLen > 0 {
		f.AdditionalInfo = info
	}
	f.Text = d.Describe(f)
	return f, nil
}

// Describe renders a one-line summary such as
// "GroupValue_Write 1.1.5 -> 1/2/3: 21.00 °C".
func (d Decoder) Describe(f Frame) string {
	route := fmt.Sprintf("%s -> %s", f.Source, f.DestinationString(d.Style))

	apci, ok := f.APCI()
	if !ok {
		tpci := byte(0)
		if len(f.TPDU) > 0 {
			tpci = f.TPDU[0]
		}
		return fmt.Sprintf("TPCI_0x%02X %s", tpci, route)
	}

	name := d.Commands.Name(apci)
	switch {
	case apci&APCI(MaskShort) == APCIGroupValueRead:
		return name + " " + route
	case apci&APCI(MaskShort) == APCIGroupValueWrite, apci&APCI(MaskShort) == APCIGroupValueResponse:
		return name + " " + route + ": " + d.value(f)
	case len(f.TPDU) > 2: //nolint:mnd // TPCI + APCI
		return name + " " + route + ": 0x" + ToHex(f.Payload())
	default:
		return name + " " + route
	}
}

// value renders a group value payload with the configured datapoint
// type. Short frames without a mapping use DefaultDPT; long frames
// without a mapping render as hex.
func (d Decoder) value(f Frame) string {
	payload := f.Payload()
	ga, isGroup := f.GroupAddress()
	if !isGroup {
		return Display(payload, "")
	}
	if dpt, ok := d.Datapoints.Get(ga); ok {
		return Display(payload, dpt)
	}
	if len(f.TPDU) == 2 { //nolint:mnd // short frame
		return Display(payload, d.Datapoints.Lookup(ga))
	}
	return Display(payload, "")
}
