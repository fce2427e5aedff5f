package tunnel

import (
	"net/netip"
	"time"

	"github.com/nerrad567/gray-logic-knxip/internal/knx"
)

// Event is delivered on Session.Events. The concrete types are
// StateEvent, GatewayEvent, TelegramEvent, DecodeErrorEvent and
// TransportErrorEvent.
type Event interface {
	EventTime() time.Time
}

// StateEvent reports a state transition.
type StateEvent struct {
	Time     time.Time
	From, To State
}

// GatewayEvent reports one search response.
type GatewayEvent struct {
	Time    time.Time
	Gateway Gateway
}

// TelegramEvent carries the CEMI frame of an acknowledged tunnelling
// request. Frame is nil when the CEMI is not an L_Data frame.
type TelegramEvent struct {
	Time      time.Time
	ChannelID uint8
	Sequence  uint8
	CEMI      []byte
	Frame     *knx.Frame
}

// DecodeErrorEvent reports an inbound datagram that failed to decode.
// The session state is unchanged.
type DecodeErrorEvent struct {
	Time time.Time
	From netip.AddrPort
	Raw  []byte
	Err  error
}

// TransportErrorEvent reports an error raised by a transport callback.
type TransportErrorEvent struct {
	Time time.Time
	Err  error
}

func (e StateEvent) EventTime() time.Time          { return e.Time }
func (e GatewayEvent) EventTime() time.Time        { return e.Time }
func (e TelegramEvent) EventTime() time.Time       { return e.Time }
func (e DecodeErrorEvent) EventTime() time.Time    { return e.Time }
func (e TransportErrorEvent) EventTime() time.Time { return e.Time }

// RawHex returns the datagram as lowercase hex for logging.
func (e DecodeErrorEvent) RawHex() string { return knx.ToHex(e.Raw) }
