package knx

import "fmt"

// FrameType is the frame-type bit of control field 1.
type FrameType uint8

// Frame types.
const (
	FrameTypeExtended FrameType = 0
	FrameTypeStandard FrameType = 1
)

// BroadcastKind is the broadcast bit of control field 1.
type BroadcastKind uint8

// Broadcast kinds.
const (
	BroadcastSystem BroadcastKind = 0
	BroadcastNormal BroadcastKind = 1
)

// Priority is the 2-bit bus priority.
type Priority uint8

// Priorities in wire order.
const (
	PrioritySystem Priority = 0
	PriorityNormal Priority = 1
	PriorityUrgent Priority = 2
	PriorityLow    Priority = 3
)

// AddressKind tells how a CEMI destination address is interpreted.
type AddressKind uint8

// Destination address kinds.
const (
	AddressIndividual AddressKind = 0
	AddressGroup      AddressKind = 1
)

// FrameFormat is the extended frame format nibble of control field 2.
type FrameFormat uint8

// Frame formats. Any nibble other than 0 or 1 decodes as FormatIllegal.
const (
	FormatStandard FrameFormat = 0
	FormatExtended FrameFormat = 1
	FormatIllegal  FrameFormat = 0x0F
)

// Control field bit positions, control field 1 in the high byte.
const (
	flagFrameType    = 1 << 15
	flagRepeat       = 1 << 13
	flagBroadcast    = 1 << 12
	flagPriorityPos  = 10
	flagAckRequest   = 1 << 9
	flagConfirmError = 1 << 8
	flagDestination  = 1 << 7
	flagHopCountPos  = 4
	flagFormatMask   = 0x0F

	hopCountMax = 7
)

// Flags is the decoded pair of CEMI control fields.
type Flags struct {
	FrameType FrameType
	// Repeat is true when the frame may be repeated on error (wire bit clear).
	Repeat       bool
	Broadcast    BroadcastKind
	Priority     Priority
	AckRequest   bool
	ConfirmError bool
	Destination  AddressKind
	// HopCount is 7 minus the 3-bit wire field.
	HopCount uint8
	Format   FrameFormat
}

// DefaultFlags returns the control fields used for outgoing group
// telegrams, 0xBCE0 on the wire.
func DefaultFlags() Flags {
	return Flags{
		FrameType:   FrameTypeStandard,
		Repeat:      false,
		Broadcast:   BroadcastNormal,
		Priority:    PriorityLow,
		Destination: AddressGroup,
		HopCount:    1,
		Format:      FormatStandard,
	}
}

// DecodeFlags unpacks the 16-bit control field.
func DecodeFlags(v uint16) Flags {
	f := Flags{
		FrameType:    FrameType(boolBit(v&flagFrameType != 0)),
		Repeat:       v&flagRepeat == 0,
		Broadcast:    BroadcastKind(boolBit(v&flagBroadcast != 0)),
		Priority:     Priority((v >> flagPriorityPos) & 0x03), //nolint:gosec // 2 bits
		AckRequest:   v&flagAckRequest != 0,
		ConfirmError: v&flagConfirmError != 0,
		Destination:  AddressKind(boolBit(v&flagDestination != 0)),
		HopCount:     hopCountMax - uint8((v>>flagHopCountPos)&0x07), //nolint:gosec // 3 bits
	}
	switch v & flagFormatMask {
	case 0:
		f.Format = FormatStandard
	case 1:
		f.Format = FormatExtended
	default:
		f.Format = FormatIllegal
	}
	return f
}

// Uint16 packs the flags into the wire control field. The reserved bit
// of control field 1 is written as zero, and FormatIllegal as 0x0F.
func (f Flags) Uint16() uint16 {
	var v uint16
	if f.FrameType == FrameTypeStandard {
		v |= flagFrameType
	}
	if !f.Repeat {
		v |= flagRepeat
	}
	if f.Broadcast == BroadcastNormal {
		v |= flagBroadcast
	}
	v |= uint16(f.Priority&0x03) << flagPriorityPos
	if f.AckRequest {
		v |= flagAckRequest
	}
	if f.ConfirmError {
		v |= flagConfirmError
	}
	if f.Destination == AddressGroup {
		v |= flagDestination
	}
	hops := min(f.HopCount, hopCountMax)
	v |= uint16(hopCountMax-hops) << flagHopCountPos
	v |= uint16(f.Format) & flagFormatMask
	return v
}

func boolBit(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// String implements fmt.Stringer.
func (p Priority) String() string {
	switch p {
	case PrioritySystem:
		return "system"
	case PriorityNormal:
		return "normal"
	case PriorityUrgent:
		return "urgent"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// String implements fmt.Stringer.
func (k AddressKind) String() string {
	if k == AddressGroup {
		return "group"
	}
	return "individual"
}

// String implements fmt.Stringer.
func (f FrameFormat) String() string {
	switch f {
	case FormatStandard:
		return "standard"
	case FormatExtended:
		return "extended"
	default:
		return "illegal"
	}
}
