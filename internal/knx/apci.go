package knx

import (
	"fmt"
	"math/bits"
	"slices"
)

// APCI is the 10-bit Application-layer Protocol Control Information.
type APCI uint16

// Masks used to match APCI codes.
const (
	// MaskShort matches the 4-bit command form, leaving 6 data bits.
	MaskShort uint16 = 0x3C0
	// MaskFull matches all 10 bits.
	MaskFull uint16 = 0x3FF

	apciMask = 0x3FF
)

// Commonly used APCI codes.
const (
	APCIGroupValueRead     APCI = 0x000
	APCIGroupValueResponse APCI = 0x040
	APCIGroupValueWrite    APCI = 0x080
)

// Command is one entry of an APCI command table.
type Command struct {
	Code APCI
	Mask uint16
	Name string
}

// Matches reports whether apci selects this command.
func (c Command) Matches(apci APCI) bool {
	return uint16(apci)&c.Mask == uint16(c.Code)&c.Mask
}

// HasShortData reports whether the low 6 APCI bits carry payload.
func (c Command) HasShortData() bool {
	return c.Mask == MaskShort
}

// APCITable resolves APCI codes to commands. The most specific mask wins
// when several entries match. Tables are immutable once built.
type APCITable struct {
	commands []Command
}

// NewAPCITable builds a table from cmds, ordering them so that entries
// with more mask bits are tried first.
func NewAPCITable(cmds []Command) *APCITable {
	sorted := slices.Clone(cmds)
	slices.SortStableFunc(sorted, func(a, b Command) int {
		return bits.OnesCount16(b.Mask) - bits.OnesCount16(a.Mask)
	})
	return &APCITable{commands: sorted}
}

// Match returns the most specific command for apci.
func (t *APCITable) Match(apci APCI) (Command, bool) {
	if t == nil {
		t = defaultAPCITable
	}
	apci &= apciMask
	for _, c := range t.commands {
		if c.Matches(apci) {
			return c, true
		}
	}
	return Command{}, false
}

// Name returns the command name or a hex placeholder.
func (t *APCITable) Name(apci APCI) string {
	if c, ok := t.Match(apci); ok {
		return c.Name
	}
	return fmt.Sprintf("APCI_0x%03X", uint16(apci))
}

// DefaultAPCITable returns the standard KNX application-layer commands.
func DefaultAPCITable() *APCITable {
	return defaultAPCITable
}

var defaultAPCITable = NewAPCITable([]Command{
	// Standard commands: 4-bit code, 6 data bits.
	{APCIGroupValueRead, MaskShort, "GroupValue_Read"},
	{APCIGroupValueResponse, MaskShort, "GroupValue_Response"},
	{APCIGroupValueWrite, MaskShort, "GroupValue_Write"},
	{0x0C0, MaskShort, "IndividualAddress_Write"},
	{0x100, MaskShort, "IndividualAddress_Read"},
	{0x140, MaskShort, "IndividualAddress_Response"},
	{0x180, MaskShort, "ADC_Read"},
	{0x1C0, MaskShort, "ADC_Response"},
	{0x200, MaskShort, "Memory_Read"},
	{0x240, MaskShort, "Memory_Response"},
	{0x280, MaskShort, "Memory_Write"},
	{0x2C0, MaskShort, "UserMessage"},
	{0x300, MaskShort, "DeviceDescriptor_Read"},
	{0x340, MaskShort, "DeviceDescriptor_Response"},
	{0x380, MaskShort, "Restart"},
	{0x3C0, MaskShort, "Escape"},

	// Extended commands sharing the ADC_Response prefix.
	{0x1C8, MaskFull, "SystemNetworkParameter_Read"},
	{0x1C9, MaskFull, "SystemNetworkParameter_Response"},
	{0x1CA, MaskFull, "SystemNetworkParameter_Write"},
	{0x1CC, MaskFull, "PropertyExtValue_Read"},
	{0x1CD, MaskFull, "PropertyExtValue_Response"},
	{0x1CE, MaskFull, "PropertyExtValue_WriteCon"},
	{0x1CF, MaskFull, "PropertyExtValue_WriteConResponse"},
	{0x1D0, MaskFull, "PropertyExtValue_WriteUnCon"},
	{0x1D1, MaskFull, "PropertyExtValue_InfoReport"},
	{0x1D2, MaskFull, "PropertyExtDescription_Read"},
	{0x1D3, MaskFull, "PropertyExtDescription_Response"},
	{0x1D4, MaskFull, "FunctionPropertyExt_Command"},
	{0x1D5, MaskFull, "FunctionPropertyExt_State_Read"},
	{0x1D6, MaskFull, "FunctionPropertyExt_State_Response"},
	{0x1FB, MaskFull, "MemoryExtended_Write"},
	{0x1FC, MaskFull, "MemoryExtended_WriteResponse"},
	{0x1FD, MaskFull, "MemoryExtended_Read"},
	{0x1FE, MaskFull, "MemoryExtended_ReadResponse"},

	// User message commands.
	{0x2C0, MaskFull, "UserMemory_Read"},
	{0x2C1, MaskFull, "UserMemory_Response"},
	{0x2C2, MaskFull, "UserMemory_Write"},
	{0x2C4, MaskFull, "UserMemoryBit_Write"},
	{0x2C5, MaskFull, "UserManufacturerInfo_Read"},
	{0x2C6, MaskFull, "UserManufacturerInfo_Response"},
	{0x2C7, MaskFull, "FunctionProperty_Command"},
	{0x2C8, MaskFull, "FunctionProperty_State_Read"},
	{0x2C9, MaskFull, "FunctionProperty_State_Response"},

	// Escape commands: router, property and management services.
	{0x3C0, MaskFull, "FilterTable_Open"},
	{0x3C1, MaskFull, "FilterTable_Read"},
	{0x3C2, MaskFull, "FilterTable_Response"},
	{0x3C3, MaskFull, "FilterTable_Write"},
	{0x3C8, MaskFull, "RouterMemory_Read"},
	{0x3C9, MaskFull, "RouterMemory_Response"},
	{0x3CA, MaskFull, "RouterMemory_Write"},
	{0x3CD, MaskFull, "RouterStatus_Read"},
	{0x3CE, MaskFull, "RouterStatus_Response"},
	{0x3CF, MaskFull, "RouterStatus_Write"},
	{0x3D0, MaskFull, "MemoryBit_Write"},
	{0x3D1, MaskFull, "Authorize_Request"},
	{0x3D2, MaskFull, "Authorize_Response"},
	{0x3D3, MaskFull, "Key_Write"},
	{0x3D4, MaskFull, "Key_Response"},
	{0x3D5, MaskFull, "PropertyValue_Read"},
	{0x3D6, MaskFull, "PropertyValue_Response"},
	{0x3D7, MaskFull, "PropertyValue_Write"},
	{0x3D8, MaskFull, "PropertyDescription_Read"},
	{0x3D9, MaskFull, "PropertyDescription_Response"},
	{0x3DA, MaskFull, "NetworkParameter_Read"},
	{0x3DB, MaskFull, "NetworkParameter_Response"},
	{0x3DC, MaskFull, "IndividualAddressSerialNumber_Read"},
	{0x3DD, MaskFull, "IndividualAddressSerialNumber_Response"},
	{0x3DE, MaskFull, "IndividualAddressSerialNumber_Write"},
	{0x3E0, MaskFull, "DomainAddress_Write"},
	{0x3E1, MaskFull, "DomainAddress_Read"},
	{0x3E2, MaskFull, "DomainAddress_Response"},
	{0x3E3, MaskFull, "DomainAddressSelective_Read"},
	{0x3E4, MaskFull, "NetworkParameter_Write"},
	{0x3E5, MaskFull, "Link_Read"},
	{0x3E6, MaskFull, "Link_Response"},
	{0x3E7, MaskFull, "Link_Write"},
	{0x3E8, MaskFull, "GroupPropValue_Read"},
	{0x3E9, MaskFull, "GroupPropValue_Response"},
	{0x3EA, MaskFull, "GroupPropValue_Write"},
	{0x3EB, MaskFull, "GroupPropValue_InfoReport"},
	{0x3EC, MaskFull, "DomainAddressSerialNumber_Read"},
	{0x3ED, MaskFull, "DomainAddressSerialNumber_Response"},
	{0x3EE, MaskFull, "DomainAddressSerialNumber_Write"},
	{0x3F0, MaskFull, "FileStream_InfoReport"},
})
