package knx

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// GroupAddress is a 16-bit KNX group address.
//
// The wire value is independent of how the address is rendered. The
// default rendering is the 3-level form Main/Middle/Sub:
//   - Main:   0-31 (5 bits)
//   - Middle: 0-7  (3 bits)
//   - Sub:    0-255 (8 bits)
type GroupAddress uint16

// PhysicalAddress is a 16-bit KNX individual address rendered as
// Area.Line.Device (4/4/8 bits).
type PhysicalAddress uint16

// AddressStyle selects how group addresses are rendered.
type AddressStyle string

// Supported group address renderings.
const (
	StyleThreeLevel AddressStyle = "three-level" // 1/2/3
	StyleTwoLevel   AddressStyle = "two-level"   // 1/515
	StyleFree       AddressStyle = "free"        // 2563
)

// Group address limits per KNX specification.
const (
	maxMain     = 31
	maxMiddle   = 7
	maxSub      = 255
	maxTwoLevel = 2047

	gaMainMask     = 0x1F // 5 bits
	gaMiddleMask   = 0x07 // 3 bits
	gaSubMask      = 0xFF // 8 bits
	gaTwoLevelMask = 0x07FF

	maxArea   = 15
	maxLine   = 15
	maxDevice = 255
)

// IsValid reports whether s is one of the known styles.
func (s AddressStyle) IsValid() bool {
	switch s {
	case StyleThreeLevel, StyleTwoLevel, StyleFree:
		return true
	default:
		return false
	}
}

// NewGroupAddress builds a group address from 3-level parts.
// Out-of-range parts are masked to their field width.
func NewGroupAddress(main, middle, sub uint8) GroupAddress {
	return GroupAddress(uint16(main&gaMainMask)<<11 | uint16(middle&gaMiddleMask)<<8 | uint16(sub))
}

// ParseGroupAddress parses a group address in any supported style.
//
// Accepts formats:
//   - "1/2/3"  3-level
//   - "1/515"  2-level
//   - "2563"   free (raw 16-bit value)
//
// Returns ErrInvalidGroupAddress if a part is out of range.
func ParseGroupAddress(s string) (GroupAddress, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	switch len(parts) {
	case 3: //nolint:mnd // 3-level
		main, err := parsePart(parts[0], maxMain)
		if err != nil {
			return 0, fmt.Errorf("%w: main group must be 0-%d, got %q", ErrInvalidGroupAddress, maxMain, parts[0])
		}
		middle, err := parsePart(parts[1], maxMiddle)
		if err != nil {
			return 0, fmt.Errorf("%w: middle group must be 0-%d, got %q", ErrInvalidGroupAddress, maxMiddle, parts[1])
		}
		sub, err := parsePart(parts[2], maxSub)
		if err != nil {
			return 0, fmt.Errorf("%w: sub group must be 0-%d, got %q", ErrInvalidGroupAddress, maxSub, parts[2])
		}
		return GroupAddress(main<<11 | middle<<8 | sub), nil
	case 2: //nolint:mnd // 2-level
		main, err := parsePart(parts[0], maxMain)
		if err != nil {
			return 0, fmt.Errorf("%w: main group must be 0-%d, got %q", ErrInvalidGroupAddress, maxMain, parts[0])
		}
		sub, err := parsePart(parts[1], maxTwoLevel)
		if err != nil {
			return 0, fmt.Errorf("%w: sub group must be 0-%d, got %q", ErrInvalidGroupAddress, maxTwoLevel, parts[1])
		}
		return GroupAddress(main<<11 | sub), nil
	case 1:
		v, err := strconv.ParseUint(parts[0], 10, 16)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidGroupAddress, s)
		}
		return GroupAddress(v), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidGroupAddress, s)
	}
}

func parsePart(s string, limit uint64) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, err
	}
	if v > limit {
		return 0, strconv.ErrRange
	}
	return uint16(v), nil
}

// Main returns the 5-bit main group.
func (ga GroupAddress) Main() uint8 {
	return uint8((ga >> 11) & gaMainMask) //nolint:gosec // masked to 5 bits
}

// Middle returns the 3-bit middle group.
func (ga GroupAddress) Middle() uint8 {
	return uint8((ga >> 8) & gaMiddleMask) //nolint:gosec // masked to 3 bits
}

// Sub returns the 8-bit sub group.
func (ga GroupAddress) Sub() uint8 {
	return uint8(ga & gaSubMask) //nolint:gosec // masked to 8 bits
}

// String returns the address in 3-level format.
func (ga GroupAddress) String() string {
	return ga.Format(StyleThreeLevel)
}

// Format renders the address in the given style. Unknown styles fall
// back to 3-level.
func (ga GroupAddress) Format(style AddressStyle) string {
	switch style {
	case StyleTwoLevel:
		return fmt.Sprintf("%d/%d", ga.Main(), uint16(ga)&gaTwoLevelMask)
	case StyleFree:
		return strconv.FormatUint(uint64(ga), 10)
	default:
		return fmt.Sprintf("%d/%d/%d", ga.Main(), ga.Middle(), ga.Sub())
	}
}

// URLEncode returns the 3-level form escaped for use in MQTT topics,
// where "/" is a level separator.
//
// Example: "1/2/3" → "1%2F2%2F3"
func (ga GroupAddress) URLEncode() string {
	return url.PathEscape(ga.String())
}

// ParsePhysicalAddress parses an "area.line.device" string.
func ParsePhysicalAddress(s string) (PhysicalAddress, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 { //nolint:mnd // area.line.device
		return 0, fmt.Errorf("%w: expected area.line.device, got %q", ErrInvalidPhysicalAddress, s)
	}
	area, err := parsePart(parts[0], maxArea)
	if err != nil {
		return 0, fmt.Errorf("%w: area must be 0-%d, got %q", ErrInvalidPhysicalAddress, maxArea, parts[0])
	}
	line, err := parsePart(parts[1], maxLine)
	if err != nil {
		return 0, fmt.Errorf("%w: line must be 0-%d, got %q", ErrInvalidPhysicalAddress, maxLine, parts[1])
	}
	device, err := parsePart(parts[2], maxDevice)
	if err != nil {
		return 0, fmt.Errorf("%w: device must be 0-%d, got %q", ErrInvalidPhysicalAddress, maxDevice, parts[2])
	}
	return PhysicalAddress(area<<12 | line<<8 | device), nil
}

// Area returns the 4-bit area.
func (pa PhysicalAddress) Area() uint8 { return uint8((pa >> 12) & 0x0F) } //nolint:gosec // masked

// Line returns the 4-bit line.
func (pa PhysicalAddress) Line() uint8 { return uint8((pa >> 8) & 0x0F) } //nolint:gosec // masked

// Device returns the 8-bit device number.
func (pa PhysicalAddress) Device() uint8 { return uint8(pa & 0xFF) } //nolint:gosec // masked

// String returns "area.line.device".
func (pa PhysicalAddress) String() string {
	return fmt.Sprintf("%d.%d.%d", pa.Area(), pa.Line(), pa.Device())
}
