package knx

import (
	"fmt"
	"time"
)

// Telegram is a group communication view of a CEMI frame.
//
// A telegram is the basic unit of communication on the KNX bus.
// It carries a command (read/write/response) and optional data
// to a destination group address.
type Telegram struct {
	// Source is the sender's individual address.
	// Zero for outgoing telegrams; the gateway fills it in.
	Source PhysicalAddress

	// Destination is the target group address.
	Destination GroupAddress

	// APCI is one of the three group value commands.
	APCI APCI

	// Data contains the DPT-encoded payload (empty for reads).
	Data []byte

	// Compact marks a payload of 6 bits or fewer that travels in the
	// APCI octet instead of a separate data byte.
	Compact bool

	// Timestamp records when the telegram was received or created.
	Timestamp time.Time
}

// Telegram extracts the group telegram from f. The second result is
// false for individual destinations and for non group-value commands.
func (f Frame) Telegram() (Telegram, bool) {
	ga, ok := f.GroupAddress()
	if !ok {
		return Telegram{}, false
	}
	apci, ok := f.APCI()
	if !ok {
		return Telegram{}, false
	}
	cmd := apci & APCI(MaskShort)
	switch cmd {
	case APCIGroupValueRead, APCIGroupValueResponse, APCIGroupValueWrite:
	default:
		return Telegram{}, false
	}

	t := Telegram{
		Source:      f.Source,
		Destination: ga,
		APCI:        cmd,
		Compact:     len(f.TPDU) == 2, //nolint:mnd // TPCI + APCI
		Timestamp:   time.Now(),
	}
	if cmd != APCIGroupValueRead {
		t.Data = append([]byte(nil), f.Payload()...)
	}
	return t, true
}

// Frame builds a CEMI frame carrying the telegram.
//
// Parameters:
//   - code: Message code, normally MessageLDataReq for outgoing frames
//   - flags: Control fields, normally DefaultFlags()
//
// Returns:
//   - Frame: Ready to encode into a tunnelling request
func (t Telegram) Frame(code MessageCode, flags Flags) Frame {
	flags.Destination = AddressGroup
	apci := uint16(t.APCI) & apciMask

	var tpdu []byte
	if t.Compact || len(t.Data) == 0 {
		var short byte
		if len(t.Data) > 0 {
			short = t.Data[0] & shortDataMask
		}
		tpdu = []byte{byte(apci >> byteShift), byte(apci) | short}
	} else {
		tpdu = make([]byte, 2, 2+len(t.Data)) //nolint:mnd // TPCI + APCI
		tpdu[0] = byte(apci >> byteShift)
		tpdu[1] = byte(apci)
		tpdu = append(tpdu, t.Data...)
	}

	return Frame{
		Code:        code,
		Flags:       flags,
		Source:      t.Source,
		Destination: uint16(t.Destination),
		TPDU:        tpdu,
	}
}

// IsWrite returns true if this is a group write telegram.
func (t Telegram) IsWrite() bool {
	return t.APCI == APCIGroupValueWrite
}

// IsRead returns true if this is a group read request.
func (t Telegram) IsRead() bool {
	return t.APCI == APCIGroupValueRead
}

// IsResponse returns true if this is a group read response.
func (t Telegram) IsResponse() bool {
	return t.APCI == APCIGroupValueResponse
}

// String returns a human-readable representation of the telegram.
func (t Telegram) String() string {
	apciStr := "UNKNOWN"
	switch t.APCI {
	case APCIGroupValueRead:
		apciStr = "READ"
	case APCIGroupValueResponse:
		apciStr = "RESPONSE"
	case APCIGroupValueWrite:
		apciStr = "WRITE"
	}
	return fmt.Sprintf("Telegram{GA:%s, APCI:%s, Data:%X}", t.Destination, apciStr, t.Data)
}

// NewWriteTelegram creates a group write telegram. Payloads of 1-bit
// datapoint types are sent in compact form.
//
// Parameters:
//   - dest: Target group address
//   - dpt: Datapoint type of data
//   - data: DPT-encoded payload
func NewWriteTelegram(dest GroupAddress, dpt DPT, data []byte) Telegram {
	return Telegram{
		Destination: dest,
		APCI:        APCIGroupValueWrite,
		Data:        data,
		Compact:     dpt.Major() == "1" && len(data) == 1,
		Timestamp:   time.Now(),
	}
}

// NewReadTelegram creates a group read request telegram.
func NewReadTelegram(dest GroupAddress) Telegram {
	return Telegram{
		Destination: dest,
		APCI:        APCIGroupValueRead,
		Timestamp:   time.Now(),
	}
}
